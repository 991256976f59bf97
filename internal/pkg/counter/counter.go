package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const listingViewsKey = "listing:counters:views"

// ViewStore persists view counts. The listing repository implements it.
type ViewStore interface {
	AddViews(ctx context.Context, id string, delta int64) error
}

// Counter buffers listing view counts in Redis and flushes them to the
// listings table in batches. Without a client every view is written
// through to the store right away.
type Counter struct {
	client *redis.Client
	views  ViewStore
}

func New(client *redis.Client, views ViewStore) *Counter {
	return &Counter{client: client, views: views}
}

// AddListingView counts one view of a listing.
func (c *Counter) AddListingView(ctx context.Context, listingID string) error {
	if c == nil {
		return nil
	}
	if c.client == nil {
		if c.views == nil {
			return nil
		}
		return c.views.AddViews(ctx, listingID, 1)
	}
	return c.client.HIncrBy(ctx, listingViewsKey, listingID, 1).Err()
}

type pending struct {
	id  string
	inc int64
}

// Flush drains the view hash and applies the increments to listings.view_count.
// The hash is renamed to a temporary key first so views counted during the
// flush go to a fresh hash. Increments that could not be written are added
// back for the next flush.
func (c *Counter) Flush(ctx context.Context) (int, error) {
	if c == nil || c.client == nil || c.views == nil {
		return 0, nil
	}

	tmpKey := fmt.Sprintf("%s:tmp:%d", listingViewsKey, time.Now().UnixNano())
	if err := c.client.Rename(ctx, listingViewsKey, tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return 0, nil
		}
		return 0, err
	}

	data, err := c.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		// Leave the temporary key alone; the counts are still in it.
		return 0, err
	}

	pairs := make([]pending, 0, len(data))
	for id, v := range data {
		inc, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pending{id: id, inc: inc})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	for i, p := range pairs {
		if err := c.views.AddViews(ctx, p.id, p.inc); err != nil {
			c.restore(tmpKey, pairs[i:])
			return i, err
		}
	}
	c.client.Del(context.Background(), tmpKey)
	return len(pairs), nil
}

// restore adds unwritten increments back to the live hash and drops the
// temporary key in one transaction, so no count is applied twice.
func (c *Counter) restore(tmpKey string, rest []pending) {
	ctx := context.Background()
	pipe := c.client.TxPipeline()
	for _, p := range rest {
		pipe.HIncrBy(ctx, listingViewsKey, p.id, p.inc)
	}
	pipe.Del(ctx, tmpKey)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[Counter] Failed to restore %d view counters: %v", len(rest), err)
		return
	}
	log.Warnf("[Counter] Restored %d view counters after a failed flush", len(rest))
}
