// Command seed-db loads gzipped JSON fixtures (users with addresses,
// products with SKUs, coupon codes) into the database. Meant for local
// development and demo environments.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lumishop/lumishop/internal/repository"
)

// db is the slice of the pool used by the seeding functions.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type addressJSON struct {
	Address      string `json:"address"`
	Zip          string `json:"zip"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
}

type userJSON struct {
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Addresses []addressJSON `json:"addresses"`
}

type skuJSON struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type crowdfundingJSON struct {
	TargetAmount decimal.Decimal `json:"target_amount"`
	EndAt        time.Time       `json:"end_at"`
}

type productJSON struct {
	Type         string            `json:"type"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	OnSale       bool              `json:"on_sale"`
	Price        decimal.Decimal   `json:"price"`
	SKUs         []skuJSON         `json:"skus"`
	Crowdfunding *crowdfundingJSON `json:"crowdfunding"`
}

type couponJSON struct {
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Total     int             `json:"total"`
	MinAmount decimal.Decimal `json:"min_amount"`
	NotBefore *time.Time      `json:"not_before"`
	NotAfter  *time.Time      `json:"not_after"`
}

func main() {
	var (
		databaseURL string
		dataDir     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&dataDir, "data-dir", "db/seed", "directory containing users.json.gz, products.json.gz, coupons.json.gz")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, dataDir); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, dataDir string) error {
	var (
		users    []userJSON
		products []productJSON
		coupons  []couponJSON
	)

	// Fixture files are independent; decompress and decode them concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loadFixture(gctx, filepath.Join(dataDir, "users.json.gz"), &users) })
	g.Go(func() error { return loadFixture(gctx, filepath.Join(dataDir, "products.json.gz"), &products) })
	g.Go(func() error { return loadFixture(gctx, filepath.Join(dataDir, "coupons.json.gz"), &coupons) })
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("fixtures loaded",
		slog.Int("users", len(users)),
		slog.Int("products", len(products)),
		slog.Int("coupons", len(coupons)),
	)

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedUsers(ctx, pool, users); err != nil {
		return err
	}
	if err := seedProducts(ctx, pool, products); err != nil {
		return err
	}
	return seedCoupons(ctx, pool, coupons)
}

// seedUsers inserts users and their addresses. A user that already
// exists (matched by email) is skipped entirely, addresses included, so
// re-running the seeder never duplicates rows or violates the user FK.
func seedUsers(ctx context.Context, conn db, users []userJSON) error {
	for _, u := range users {
		var userID string
		err := conn.QueryRow(ctx,
			`INSERT INTO users (id, email, name) VALUES ($1, $2, $3)
			 ON CONFLICT (email) DO NOTHING RETURNING id`,
			uuid.New().String(), u.Email, u.Name).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "insert user %s", u.Email)
		}
		for _, a := range u.Addresses {
			_, err := conn.Exec(ctx,
				`INSERT INTO user_addresses (id, user_id, address, zip, contact_name, contact_phone)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New().String(), userID, a.Address, a.Zip, a.ContactName, a.ContactPhone)
			if err != nil {
				return errors.Wrapf(err, "insert address for user %s", u.Email)
			}
		}
	}
	return nil
}

func seedProducts(ctx context.Context, conn db, products []productJSON) error {
	for _, p := range products {
		productID := uuid.New().String()
		_, err := conn.Exec(ctx,
			`INSERT INTO products (id, type, title, description, on_sale, price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			productID, p.Type, p.Title, p.Description, p.OnSale, p.Price)
		if err != nil {
			return errors.Wrapf(err, "insert product %q", p.Title)
		}
		if p.Crowdfunding != nil {
			_, err := conn.Exec(ctx,
				`INSERT INTO crowdfundings (id, product_id, target_amount, end_at)
				 VALUES ($1, $2, $3, $4)`,
				uuid.New().String(), productID, p.Crowdfunding.TargetAmount, p.Crowdfunding.EndAt)
			if err != nil {
				return errors.Wrapf(err, "insert crowdfunding for %q", p.Title)
			}
		}
		for _, s := range p.SKUs {
			_, err := conn.Exec(ctx,
				`INSERT INTO product_skus (id, product_id, title, price, stock)
				 VALUES ($1, $2, $3, $4, $5)`,
				uuid.New().String(), productID, s.Title, s.Price, s.Stock)
			if err != nil {
				return errors.Wrapf(err, "insert sku %q", s.Title)
			}
		}
	}
	return nil
}

func seedCoupons(ctx context.Context, conn db, coupons []couponJSON) error {
	for _, c := range coupons {
		_, err := conn.Exec(ctx,
			`INSERT INTO coupon_codes (id, name, code, type, value, total, min_amount, not_before, not_after)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (code) DO NOTHING`,
			uuid.New().String(), c.Name, c.Code, c.Type, c.Value, c.Total, c.MinAmount, c.NotBefore, c.NotAfter)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %q", c.Code)
		}
	}
	return nil
}

func loadFixture(ctx context.Context, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gunzip %s", path)
	}
	defer func() { _ = gz.Close() }()

	if err := json.NewDecoder(gz).Decode(dst); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
