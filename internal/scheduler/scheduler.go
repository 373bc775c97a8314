// Package scheduler implements the delayed-job queue for auto-cancelling
// unpaid orders. Jobs are members of a Redis sorted set scored by their
// fire-at time; delivery is at-least-once, and the cancellation handler
// re-checks order state before acting, so duplicate fires are harmless.
package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	cancelQueueKey = "orders:cancel"
	popBatchSize   = 100
)

// Queue schedules and drains delayed order-cancellation jobs.
type Queue struct {
	client *redis.Client
	now    func() time.Time
}

// NewQueue returns a Queue over the given Redis client.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client, now: time.Now}
}

// ScheduleCancel enqueues an auto-cancel job for the order, firing
// after the given delay. A non-positive delay fires on the next poll.
func (q *Queue) ScheduleCancel(ctx context.Context, orderID string, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	fireAt := q.now().Add(delay)
	err := q.client.ZAdd(ctx, cancelQueueKey, redis.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: orderID,
	}).Err()
	if err != nil {
		return errors.Wrap(err, "enqueue cancel job")
	}
	return nil
}

// Due pops the order IDs whose fire-at time has passed.
func (q *Queue) Due(ctx context.Context) ([]string, error) {
	max := strconv.FormatInt(q.now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, cancelQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: popBatchSize,
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read due cancel jobs")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := q.client.ZRem(ctx, cancelQueueKey, members...).Err(); err != nil {
		return nil, errors.Wrap(err, "remove cancel jobs")
	}
	return ids, nil
}
