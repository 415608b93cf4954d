package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	DocumentKeyPrefix = "doc:%s:%s"
)

const (
	DocumentTTL = 5 * time.Minute
)

func DocumentKey(collection, id string) string {
	return fmt.Sprintf(DocumentKeyPrefix, collection, id)
}

func (c *Cache) InvalidateDocument(ctx context.Context, collection, id string) {
	c.Invalidate(ctx, DocumentKey(collection, id))
}
