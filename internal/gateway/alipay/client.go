// Package alipay implements the narrow refund contract consumed from
// the Alipay gateway. Refunds answer synchronously: a sub_code in the
// response body means the refund failed.
package alipay

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/lumishop/lumishop/internal/domain/payment"
)

var _ payment.AlipayClient = (*Client)(nil)

// Client calls the Alipay gateway over HTTP.
type Client struct {
	baseURL string
	appID   string
	http    *http.Client
}

// NewClient creates a Client for the gateway at baseURL.
func NewClient(baseURL, appID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, appID: appID, http: httpClient}
}

// Refund initiates a refund and returns the gateway's synchronous
// verdict. Amounts are sent in the major currency unit (yuan).
func (c *Client) Refund(ctx context.Context, req payment.AlipayRefund) (*payment.AlipayRefundResult, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("app_id")
	e.Str(c.appID)
	e.FieldStart("out_trade_no")
	e.Str(req.TradeNo)
	e.FieldStart("refund_amount")
	e.Str(req.RefundAmount.StringFixed(2))
	e.FieldStart("out_request_no")
	e.Str(req.OutRequestNo)
	e.ObjEnd()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/gateway/trade/refund", bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "build refund request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call refund")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read refund response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("refund: unexpected status %d", resp.StatusCode)
	}

	return decodeRefundResult(body)
}

func decodeRefundResult(body []byte) (*payment.AlipayRefundResult, error) {
	var res payment.AlipayRefundResult
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sub_code":
			v, err := d.Str()
			res.SubCode = v
			return err
		case "sub_msg":
			v, err := d.Str()
			res.SubMsg = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode refund response")
	}
	return &res, nil
}
