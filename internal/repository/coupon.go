package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumishop/lumishop/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, name, code, type, value, total, used,
			min_amount, not_before, not_after, enabled
		FROM coupon_codes WHERE UPPER(code) = UPPER($1)`

	listCouponCodesSQL = `SELECT code FROM coupon_codes`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// It serves the fail-fast pre-check before the checkout transaction;
// the authoritative re-check and redemption run inside the transaction.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalid when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Code, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalid
		}
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}
	return &c, nil
}

// ListCodes returns every known coupon code, used to warm the bloom
// pre-filter at startup.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

func scanCoupon(row pgx.CollectableRow) (coupon.Code, error) {
	var (
		c         coupon.Code
		ctype     string
		total     int32
		used      int32
		notBefore *time.Time
		notAfter  *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Code, &ctype, &c.Value, &total, &used,
		&c.MinAmount, &notBefore, &notAfter, &c.Enabled,
	)
	c.Type = coupon.Type(ctype)
	c.Total = int(total)
	c.Used = int(used)
	c.NotBefore = notBefore
	c.NotAfter = notAfter
	return c, err
}
