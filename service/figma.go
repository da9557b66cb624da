package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/bai-labs/figmaproxy/cache"
	"github.com/bai-labs/figmaproxy/figma"
	"github.com/bai-labs/figmaproxy/models"
)

// The backing document store caps entries at 16 MiB; the 1 MiB margin
// below the cap absorbs metadata overhead. Bodies strictly over the
// threshold are stored gzipped.
const compressThresholdBytes = 15 * 1024 * 1024

type FileResult struct {
	Tree          *models.TreeNode
	FileName      string
	LastModified  time.Time
	Cached        bool
	CachedAt      time.Time
	WasCompressed bool
}

type NodeResult struct {
	FileKey       string
	NodeId        string
	Tree          *models.TreeNode
	ThumbnailUrl  string
	LastModified  time.Time
	Cached        bool
	CachedAt      time.Time
	WasCompressed bool
}

// GetFile serves the document tree for a Figma file, reading through
// the cache: a hit is decoded and returned as-is, a miss fetches from
// the Figma API with the user's access token and writes back.
func (s *Service) GetFile(ctx context.Context, user models.User, fileKey string) (FileResult, error) {
	doc, err := s.Cache.GetFile(ctx, fileKey)
	if err == nil {
		tree, decodeErr := decodeTree(doc)
		if decodeErr != nil {
			return FileResult{}, decodeErr
		}
		return FileResult{
			Tree:          tree,
			FileName:      doc.FileName,
			LastModified:  doc.LastModified,
			Cached:        true,
			CachedAt:      doc.CachedAt,
			WasCompressed: doc.Compressed,
		}, nil
	}
	if !errors.Is(err, cache.ErrNotCached) {
		// Degrade to a miss; an unreachable cache must not block reads
		log.Warn().Err(err).Str("fileKey", fileKey).Msg("cache lookup failed")
	}

	file, err := s.Figma.File(ctx, user.AccessToken, fileKey)
	if err != nil {
		return FileResult{}, fmt.Errorf("%w: %v", ErrRemoteFetchFailed, err)
	}

	tree := buildTree(file.Document)
	body, compressed, size, err := encodeBody(tree)
	if err != nil {
		return FileResult{}, err
	}

	if err := s.Cache.PutFile(ctx, models.Document{
		FileKey:      fileKey,
		FileName:     file.Name,
		Body:         body,
		Compressed:   compressed,
		OriginalSize: size,
		LastModified: file.LastModified,
		CachedAt:     time.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("fileKey", fileKey).Msg("cache write failed")
	}

	return FileResult{Tree: tree, FileName: file.Name, LastModified: file.LastModified}, nil
}

// GetNode is GetFile at node granularity, using the Figma nodes
// endpoint and the compound (fileKey, nodeId) cache key.
func (s *Service) GetNode(ctx context.Context, user models.User, fileKey string, nodeId string) (NodeResult, error) {
	doc, err := s.Cache.GetNode(ctx, fileKey, nodeId)
	if err == nil {
		tree, decodeErr := decodeTree(doc)
		if decodeErr != nil {
			return NodeResult{}, decodeErr
		}
		return NodeResult{
			FileKey:       fileKey,
			NodeId:        nodeId,
			Tree:          tree,
			ThumbnailUrl:  doc.ThumbnailUrl,
			LastModified:  doc.LastModified,
			Cached:        true,
			CachedAt:      doc.CachedAt,
			WasCompressed: doc.Compressed,
		}, nil
	}
	if !errors.Is(err, cache.ErrNotCached) {
		log.Warn().Err(err).Str("fileKey", fileKey).Str("nodeId", nodeId).Msg("cache lookup failed")
	}

	fileNodes, err := s.Figma.Nodes(ctx, user.AccessToken, fileKey, nodeId)
	if err != nil {
		return NodeResult{}, fmt.Errorf("%w: %v", ErrRemoteFetchFailed, err)
	}

	entry, ok := fileNodes.Nodes[nodeId]
	if !ok {
		return NodeResult{}, ErrNodeNotFound
	}

	tree := buildTree(entry.Document)
	body, compressed, size, err := encodeBody(tree)
	if err != nil {
		return NodeResult{}, err
	}

	if err := s.Cache.PutNode(ctx, models.Document{
		FileKey:      fileKey,
		NodeId:       nodeId,
		ThumbnailUrl: fileNodes.ThumbnailUrl,
		Body:         body,
		Compressed:   compressed,
		OriginalSize: size,
		LastModified: fileNodes.LastModified,
		CachedAt:     time.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("fileKey", fileKey).Str("nodeId", nodeId).Msg("cache write failed")
	}

	return NodeResult{
		FileKey:      fileKey,
		NodeId:       nodeId,
		Tree:         tree,
		ThumbnailUrl: fileNodes.ThumbnailUrl,
		LastModified: fileNodes.LastModified,
	}, nil
}

func (s *Service) InvalidateFileCache(ctx context.Context, fileKey string) error {
	return s.Cache.InvalidateFile(ctx, fileKey)
}

func (s *Service) InvalidateNodeCache(ctx context.Context, fileKey string, nodeId string) error {
	return s.Cache.InvalidateNode(ctx, fileKey, nodeId)
}

func (s *Service) InvalidateAllCache(ctx context.Context) (int64, int64, error) {
	return s.Cache.InvalidateAll(ctx)
}

func (s *Service) CacheStats(ctx context.Context) (models.CacheStats, error) {
	return s.Cache.Stats(ctx)
}

// buildTree converts a raw Figma node into the canonical tree with an
// explicit work stack. Remote documents can nest deep enough that
// recursion is not safe on pathological input.
func buildTree(root figma.Node) *models.TreeNode {
	dst := &models.TreeNode{}

	type frame struct {
		src *figma.Node
		dst *models.TreeNode
	}
	stack := []frame{{src: &root, dst: dst}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		f.dst.Id = f.src.Id
		f.dst.Name = f.src.Name
		f.dst.Type = f.src.Type
		f.dst.Children = make([]*models.TreeNode, len(f.src.Children))
		for i := range f.src.Children {
			child := &models.TreeNode{}
			f.dst.Children[i] = child
			stack = append(stack, frame{src: &f.src.Children[i], dst: child})
		}
	}

	return dst
}

// encodeBody serializes the tree and picks the storage representation.
// Compression triggers only when the serialized size strictly exceeds
// the threshold; the returned size is always the uncompressed one.
func encodeBody(tree *models.TreeNode) ([]byte, bool, int64, error) {
	plain, err := json.Marshal(tree)
	if err != nil {
		return nil, false, 0, err
	}

	size := int64(len(plain))
	if size <= compressThresholdBytes {
		return plain, false, size, nil
	}

	compressed, err := gzipBytes(plain)
	if err != nil {
		return nil, false, 0, err
	}
	return compressed, true, size, nil
}

func decodeTree(doc models.Document) (*models.TreeNode, error) {
	body := doc.Body
	if doc.Compressed {
		plain, err := gunzipBytes(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
		body = plain
	}

	var tree models.TreeNode
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return &tree, nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
