package figma

import (
	"context"
	"time"
)

// Node is a raw node as returned by the Figma REST API. Only the fields
// the tree transform needs are decoded.
type Node struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Children []Node `json:"children"`
}

type File struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"lastModified"`
	ThumbnailUrl string    `json:"thumbnailUrl"`
	Document     Node      `json:"document"`
}

type NodeEntry struct {
	Document Node `json:"document"`
}

type FileNodes struct {
	Name         string               `json:"name"`
	LastModified time.Time            `json:"lastModified"`
	ThumbnailUrl string               `json:"thumbnailUrl"`
	Nodes        map[string]NodeEntry `json:"nodes"`
}

type Me struct {
	Id     string `json:"id"`
	Email  string `json:"email"`
	Handle string `json:"handle"`
	ImgUrl string `json:"img_url"`
}

// Client is the remote Figma API. All calls authenticate with the
// user's OAuth access token.
type Client interface {
	Me(ctx context.Context, accessToken string) (Me, error)
	File(ctx context.Context, accessToken string, fileKey string) (File, error)
	Nodes(ctx context.Context, accessToken string, fileKey string, nodeId string) (FileNodes, error)
}
