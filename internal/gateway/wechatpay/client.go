// Package wechatpay implements the narrow refund contract consumed from
// the WeChat Pay gateway. The refund call only initiates the refund;
// the outcome arrives later on the refund-notify webhook.
package wechatpay

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/lumishop/lumishop/internal/domain/payment"
)

var _ payment.WechatClient = (*Client)(nil)

// Client calls the WeChat Pay gateway over HTTP.
type Client struct {
	baseURL   string
	mchID     string
	notifyURL string
	http      *http.Client
}

// NewClient creates a Client for the gateway at baseURL. notifyURL is
// where the gateway delivers the asynchronous refund result.
func NewClient(baseURL, mchID, notifyURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, mchID: mchID, notifyURL: notifyURL, http: httpClient}
}

// Refund initiates a refund. Fees are sent in the minor currency unit
// (cents). Acceptance here says nothing about the refund's outcome.
func (c *Client) Refund(ctx context.Context, req payment.WechatRefund) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("mch_id")
	e.Str(c.mchID)
	e.FieldStart("out_trade_no")
	e.Str(req.OutTradeNo)
	e.FieldStart("out_refund_no")
	e.Str(req.OutRefundNo)
	e.FieldStart("total_fee")
	e.Int64(req.TotalFee)
	e.FieldStart("refund_fee")
	e.Int64(req.RefundFee)
	e.FieldStart("notify_url")
	e.Str(c.notifyURL)
	e.ObjEnd()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/secapi/pay/refund", bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build refund request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "call refund")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("refund: unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}
