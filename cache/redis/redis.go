package redis

import (
	"context"
	"crypto/tls"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bai-labs/figmaproxy/cache"
	"github.com/bai-labs/figmaproxy/models"
)

type RedisDocumentCache struct {
	client redis.UniversalClient
}

func NewRedisDocumentCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisDocumentCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisDocumentCache{client: client}, nil
}

// Design Choice: Split Index/Data Pattern
// Each document lives in its own hash; alongside it we maintain:
// 1. ZSet "figfile:index" / "fignode:index": members keyed by identity,
//    scored by cachedAt. Gives O(log n) stats (count, oldest, newest)
//    and enumerability for the full flush without a SCAN.
// 2. Set "fignode:{<fileKey>}:ids": the node ids cached under one file,
//    hash-tagged with the node hashes so the cascade delete stays in a
//    single cluster slot.
func buildFileDocKey(fileKey string) string {
	return "figfile:{" + fileKey + "}"
}

func buildNodeDocKey(fileKey string, nodeId string) string {
	return "fignode:{" + fileKey + "}:" + nodeId
}

func buildNodeSetKey(fileKey string) string {
	return "fignode:{" + fileKey + "}:ids"
}

const (
	fileIndexKey = "figfile:index"
	nodeIndexKey = "fignode:index"
)

func nodeIndexMember(fileKey string, nodeId string) string {
	return fileKey + "/" + nodeId
}

func splitNodeIndexMember(member string) (string, string) {
	fileKey, nodeId, _ := strings.Cut(member, "/")
	return fileKey, nodeId
}

func docToFields(doc models.Document) map[string]any {
	compressed := "0"
	if doc.Compressed {
		compressed = "1"
	}
	return map[string]any{
		"body":         doc.Body,
		"compressed":   compressed,
		"originalSize": doc.OriginalSize,
		"fileName":     doc.FileName,
		"thumbnailUrl": doc.ThumbnailUrl,
		"lastModified": doc.LastModified.Unix(),
		"cachedAt":     doc.CachedAt.Unix(),
	}
}

func docFromFields(fileKey string, nodeId string, fields map[string]string) models.Document {
	originalSize, _ := strconv.ParseInt(fields["originalSize"], 10, 64)
	lastModified, _ := strconv.ParseInt(fields["lastModified"], 10, 64)
	cachedAt, _ := strconv.ParseInt(fields["cachedAt"], 10, 64)

	return models.Document{
		FileKey:      fileKey,
		NodeId:       nodeId,
		FileName:     fields["fileName"],
		ThumbnailUrl: fields["thumbnailUrl"],
		Body:         []byte(fields["body"]),
		Compressed:   fields["compressed"] == "1",
		OriginalSize: originalSize,
		LastModified: time.Unix(lastModified, 0),
		CachedAt:     time.Unix(cachedAt, 0),
	}
}

func (redisCache *RedisDocumentCache) GetFile(ctx context.Context, fileKey string) (models.Document, error) {
	fields, err := redisCache.client.HGetAll(ctx, buildFileDocKey(fileKey)).Result()
	if err != nil {
		return models.Document{}, err
	}
	if len(fields) == 0 {
		return models.Document{}, cache.ErrNotCached
	}
	return docFromFields(fileKey, "", fields), nil
}

func (redisCache *RedisDocumentCache) PutFile(ctx context.Context, doc models.Document) error {
	pipe := redisCache.client.Pipeline()
	pipe.HSet(ctx, buildFileDocKey(doc.FileKey), docToFields(doc))
	pipe.ZAdd(ctx, fileIndexKey, redis.Z{
		Score:  float64(doc.CachedAt.Unix()),
		Member: doc.FileKey,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisDocumentCache) GetNode(ctx context.Context, fileKey string, nodeId string) (models.Document, error) {
	fields, err := redisCache.client.HGetAll(ctx, buildNodeDocKey(fileKey, nodeId)).Result()
	if err != nil {
		return models.Document{}, err
	}
	if len(fields) == 0 {
		return models.Document{}, cache.ErrNotCached
	}
	return docFromFields(fileKey, nodeId, fields), nil
}

func (redisCache *RedisDocumentCache) PutNode(ctx context.Context, doc models.Document) error {
	pipe := redisCache.client.Pipeline()
	pipe.HSet(ctx, buildNodeDocKey(doc.FileKey, doc.NodeId), docToFields(doc))
	pipe.SAdd(ctx, buildNodeSetKey(doc.FileKey), doc.NodeId)
	pipe.ZAdd(ctx, nodeIndexKey, redis.Z{
		Score:  float64(doc.CachedAt.Unix()),
		Member: nodeIndexMember(doc.FileKey, doc.NodeId),
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisDocumentCache) InvalidateFile(ctx context.Context, fileKey string) error {
	if err := redisCache.client.Del(ctx, buildFileDocKey(fileKey)).Err(); err != nil {
		return err
	}
	if err := redisCache.client.ZRem(ctx, fileIndexKey, fileKey).Err(); err != nil {
		return err
	}

	// Cascade: drop every node cached under this file
	nodeIds, err := redisCache.client.SMembers(ctx, buildNodeSetKey(fileKey)).Result()
	if err != nil {
		return err
	}
	if len(nodeIds) == 0 {
		return nil
	}

	docKeys := make([]string, 0, len(nodeIds)+1)
	indexMembers := make([]any, 0, len(nodeIds))
	for _, nodeId := range nodeIds {
		docKeys = append(docKeys, buildNodeDocKey(fileKey, nodeId))
		indexMembers = append(indexMembers, nodeIndexMember(fileKey, nodeId))
	}
	docKeys = append(docKeys, buildNodeSetKey(fileKey))

	// Doc keys and the id set share the file's hash tag, so this DEL is
	// one slot even in cluster mode
	if err := redisCache.client.Del(ctx, docKeys...).Err(); err != nil {
		return err
	}
	return redisCache.client.ZRem(ctx, nodeIndexKey, indexMembers...).Err()
}

func (redisCache *RedisDocumentCache) InvalidateNode(ctx context.Context, fileKey string, nodeId string) error {
	pipe := redisCache.client.Pipeline()
	pipe.Del(ctx, buildNodeDocKey(fileKey, nodeId))
	pipe.SRem(ctx, buildNodeSetKey(fileKey), nodeId)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}
	return redisCache.client.ZRem(ctx, nodeIndexKey, nodeIndexMember(fileKey, nodeId)).Err()
}

func (redisCache *RedisDocumentCache) InvalidateAll(ctx context.Context) (int64, int64, error) {
	fileKeys, err := redisCache.client.ZRange(ctx, fileIndexKey, 0, -1).Result()
	if err != nil {
		return 0, 0, err
	}
	nodeMembers, err := redisCache.client.ZRange(ctx, nodeIndexKey, 0, -1).Result()
	if err != nil {
		return 0, 0, err
	}

	for _, fileKey := range fileKeys {
		if err := redisCache.client.Del(ctx, buildFileDocKey(fileKey), buildNodeSetKey(fileKey)).Err(); err != nil {
			return 0, 0, err
		}
	}
	for _, member := range nodeMembers {
		fileKey, nodeId := splitNodeIndexMember(member)
		if err := redisCache.client.Del(ctx, buildNodeDocKey(fileKey, nodeId)).Err(); err != nil {
			return 0, 0, err
		}
	}

	if err := redisCache.client.Del(ctx, fileIndexKey, nodeIndexKey).Err(); err != nil {
		return 0, 0, err
	}

	return int64(len(fileKeys)), int64(len(nodeMembers)), nil
}

func (redisCache *RedisDocumentCache) Stats(ctx context.Context) (models.CacheStats, error) {
	files, err := indexStats(redisCache.client, ctx, fileIndexKey)
	if err != nil {
		return models.CacheStats{}, err
	}
	instances, err := indexStats(redisCache.client, ctx, nodeIndexKey)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{Files: files, Instances: instances}, nil
}

func indexStats(client redis.UniversalClient, ctx context.Context, indexKey string) (models.EntityStats, error) {
	count, err := client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return models.EntityStats{}, err
	}
	if count == 0 {
		return models.EntityStats{}, nil
	}

	oldest, err := client.ZRangeWithScores(ctx, indexKey, 0, 0).Result()
	if err != nil {
		return models.EntityStats{}, err
	}
	newest, err := client.ZRangeWithScores(ctx, indexKey, -1, -1).Result()
	if err != nil {
		return models.EntityStats{}, err
	}

	stats := models.EntityStats{Count: count}
	if len(oldest) > 0 {
		t := time.Unix(int64(oldest[0].Score), 0)
		stats.Oldest = &t
	}
	if len(newest) > 0 {
		t := time.Unix(int64(newest[0].Score), 0)
		stats.Newest = &t
	}
	return stats, nil
}
