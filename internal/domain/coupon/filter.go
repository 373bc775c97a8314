package coupon

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const filterFPR = 0.001

// Filter is a bloom-filter pre-check over known coupon codes. It lets
// checkout reject obviously bogus codes without a database round trip.
// False positives fall through to the real lookup; false negatives
// cannot happen for codes present at the last reload. Reload
// periodically so codes created at runtime become visible.
type Filter struct {
	mu    sync.RWMutex
	bloom *bloom.BloomFilter
}

// WarmFilter loads every coupon code from the repository into a new Filter.
func WarmFilter(ctx context.Context, repo Repository) (*Filter, error) {
	f := &Filter{}
	if err := f.Reload(ctx, repo); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload rebuilds the filter from the repository's current code set and
// swaps it in atomically. Safe to call concurrently with lookups.
func (f *Filter) Reload(ctx context.Context, repo Repository) error {
	codes, err := repo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}

	n := uint(len(codes))
	if n < 1024 {
		n = 1024
	}
	next := bloom.NewWithEstimates(n, filterFPR)
	for _, code := range codes {
		next.AddString(strings.ToUpper(code))
	}

	f.mu.Lock()
	f.bloom = next
	f.mu.Unlock()
	return nil
}

// Add registers a code with the filter. Codes are case-insensitive.
func (f *Filter) Add(code string) {
	f.mu.Lock()
	f.bloom.AddString(strings.ToUpper(code))
	f.mu.Unlock()
}

// MayContain reports whether the code might exist. A false result is
// definitive for the code set as of the last reload; a true result
// still requires a repository lookup.
func (f *Filter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bloom.TestString(strings.ToUpper(code))
}
