package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bai-labs/figmaproxy/cache"
	"github.com/bai-labs/figmaproxy/models"
)

// MemoryDocumentCache keeps cached documents in process memory. Default
// for single-instance deployments without a Redis endpoint configured.
type MemoryDocumentCache struct {
	mu    sync.RWMutex
	files map[string]models.Document
	nodes map[string]map[string]models.Document // fileKey -> nodeId -> doc
}

func NewMemoryDocumentCache() *MemoryDocumentCache {
	return &MemoryDocumentCache{
		files: make(map[string]models.Document),
		nodes: make(map[string]map[string]models.Document),
	}
}

func (c *MemoryDocumentCache) GetFile(ctx context.Context, fileKey string) (models.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.files[fileKey]
	if !ok {
		return models.Document{}, cache.ErrNotCached
	}
	return doc, nil
}

func (c *MemoryDocumentCache) PutFile(ctx context.Context, doc models.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[doc.FileKey] = doc
	return nil
}

func (c *MemoryDocumentCache) GetNode(ctx context.Context, fileKey string, nodeId string) (models.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.nodes[fileKey][nodeId]
	if !ok {
		return models.Document{}, cache.ErrNotCached
	}
	return doc, nil
}

func (c *MemoryDocumentCache) PutNode(ctx context.Context, doc models.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes[doc.FileKey]; !ok {
		c.nodes[doc.FileKey] = make(map[string]models.Document)
	}
	c.nodes[doc.FileKey][doc.NodeId] = doc
	return nil
}

func (c *MemoryDocumentCache) InvalidateFile(ctx context.Context, fileKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.files, fileKey)
	delete(c.nodes, fileKey)
	return nil
}

func (c *MemoryDocumentCache) InvalidateNode(ctx context.Context, fileKey string, nodeId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fileNodes, ok := c.nodes[fileKey]
	if !ok {
		return nil
	}
	delete(fileNodes, nodeId)
	if len(fileNodes) == 0 {
		delete(c.nodes, fileKey)
	}
	return nil
}

func (c *MemoryDocumentCache) InvalidateAll(ctx context.Context) (int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := int64(len(c.files))
	var nodes int64
	for _, fileNodes := range c.nodes {
		nodes += int64(len(fileNodes))
	}

	c.files = make(map[string]models.Document)
	c.nodes = make(map[string]map[string]models.Document)
	return files, nodes, nil
}

func (c *MemoryDocumentCache) Stats(ctx context.Context) (models.CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats models.CacheStats
	for _, doc := range c.files {
		observe(&stats.Files, doc.CachedAt)
	}
	for _, fileNodes := range c.nodes {
		for _, doc := range fileNodes {
			observe(&stats.Instances, doc.CachedAt)
		}
	}
	return stats, nil
}

func observe(es *models.EntityStats, cachedAt time.Time) {
	es.Count++
	if es.Oldest == nil || cachedAt.Before(*es.Oldest) {
		t := cachedAt
		es.Oldest = &t
	}
	if es.Newest == nil || cachedAt.After(*es.Newest) {
		t := cachedAt
		es.Newest = &t
	}
}
