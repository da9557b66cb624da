package cache

import (
	"context"

	"github.com/bai-labs/figmaproxy/models"
)

// NoopDocumentCache is the cache-less fallback used when the backing
// store is unreachable at startup: every read misses, every write is
// dropped, so the service still proxies documents straight through.
type NoopDocumentCache struct{}

func (NoopDocumentCache) GetFile(ctx context.Context, fileKey string) (models.Document, error) {
	return models.Document{}, ErrNotCached
}

func (NoopDocumentCache) PutFile(ctx context.Context, doc models.Document) error {
	return nil
}

func (NoopDocumentCache) GetNode(ctx context.Context, fileKey string, nodeId string) (models.Document, error) {
	return models.Document{}, ErrNotCached
}

func (NoopDocumentCache) PutNode(ctx context.Context, doc models.Document) error {
	return nil
}

func (NoopDocumentCache) InvalidateFile(ctx context.Context, fileKey string) error {
	return nil
}

func (NoopDocumentCache) InvalidateNode(ctx context.Context, fileKey string, nodeId string) error {
	return nil
}

func (NoopDocumentCache) InvalidateAll(ctx context.Context) (int64, int64, error) {
	return 0, 0, nil
}

func (NoopDocumentCache) Stats(ctx context.Context) (models.CacheStats, error) {
	return models.CacheStats{}, nil
}
