// Package cart provides the Redis-backed shopping cart consumed by
// checkout. The cart lives outside the transactional store; checkout
// clears purchased SKUs right after its transaction commits.
package cart

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cart:"

// Service stores each user's cart as a Redis hash of skuID -> quantity.
type Service struct {
	client *redis.Client
}

// NewService returns a cart Service over the given Redis client.
func NewService(client *redis.Client) *Service {
	return &Service{client: client}
}

// NewClient connects to Redis using a redis:// connection string.
func NewClient(connectionString string) (*redis.Client, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis connection string")
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return client, nil
}

// AddItem puts a SKU into the user's cart, replacing any existing quantity.
func (s *Service) AddItem(ctx context.Context, userID, skuID string, quantity int) error {
	if err := s.client.HSet(ctx, cartKey(userID), skuID, quantity).Err(); err != nil {
		return errors.Wrap(err, "add cart item")
	}
	return nil
}

// Items returns the user's cart as skuID -> quantity.
func (s *Service) Items(ctx context.Context, userID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	items := make(map[string]int, len(raw))
	for skuID, qty := range raw {
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, errors.Wrapf(err, "bad cart quantity for sku %s", skuID)
		}
		items[skuID] = n
	}
	return items, nil
}

// RemoveItems drops the given SKUs from the user's cart.
func (s *Service) RemoveItems(ctx context.Context, userID string, skuIDs []string) error {
	if len(skuIDs) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, cartKey(userID), skuIDs...).Err(); err != nil {
		return errors.Wrap(err, "remove cart items")
	}
	return nil
}

func cartKey(userID string) string {
	return keyPrefix + userID
}
