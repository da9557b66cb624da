package models

import "time"

type User struct {
	Id           string
	FigmaId      string
	Email        string
	Name         string
	AccessToken  string
	RefreshToken string
	Created      int64
}

// TreeNode is the canonical document tree derived from a Figma file:
// id, name, type and ordered children, recursively.
type TreeNode struct {
	Id       string      `json:"id"`
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Children []*TreeNode `json:"children"`
}

// Document is a cached Figma document at file or node granularity.
// NodeId is empty for file-level documents. Body holds the JSON-encoded
// tree; when Compressed is set it holds the gzip of that JSON instead.
// A single body slot plus flag makes a half-written plain/compressed
// combination unrepresentable.
type Document struct {
	FileKey      string
	NodeId       string
	FileName     string
	ThumbnailUrl string
	Body         []byte
	Compressed   bool
	OriginalSize int64
	LastModified time.Time
	CachedAt     time.Time
}

type EntityStats struct {
	Count  int64      `json:"count"`
	Oldest *time.Time `json:"oldest,omitempty"`
	Newest *time.Time `json:"newest,omitempty"`
}

type CacheStats struct {
	Files     EntityStats `json:"files"`
	Instances EntityStats `json:"instances"`
}
