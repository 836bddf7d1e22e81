package sequence

import (
	"context"
	"io"
	"sync/atomic"

	"gencon/internal/blob"
)

type countingStore struct {
	blob.Store
	gets atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, key)
}
