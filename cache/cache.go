package cache

import (
	"context"
	"errors"

	"github.com/bai-labs/figmaproxy/models"
)

// DocumentCache stores remote document trees keyed by file or
// (file, node) identity. Puts are upserts: the same key always replaces
// the prior entry. Entries never expire on their own; they live until
// explicitly invalidated.
type DocumentCache interface {
	GetFile(ctx context.Context, fileKey string) (models.Document, error)
	PutFile(ctx context.Context, doc models.Document) error

	GetNode(ctx context.Context, fileKey string, nodeId string) (models.Document, error)
	PutNode(ctx context.Context, doc models.Document) error

	// InvalidateFile removes the file entry and every node entry under
	// the same fileKey. Node caches are meaningless once the parent file
	// is known stale.
	InvalidateFile(ctx context.Context, fileKey string) error
	InvalidateNode(ctx context.Context, fileKey string, nodeId string) error
	// InvalidateAll clears both stores and returns the prior counts.
	InvalidateAll(ctx context.Context) (files int64, nodes int64, err error)

	Stats(ctx context.Context) (models.CacheStats, error)
}

var ErrNotCached = errors.New("document not cached")
