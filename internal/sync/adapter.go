// Package sync implements the directory-serialized three-way merge
// engine: it exports a collection to path->document form via
// internal/serializer, compares it against a remote tree through an
// Adapter, classifies each path's divergence, and applies the result
// atomically on both sides.
package sync

import "context"

// Entry is one path reported by a recursive remote directory listing.
type Entry struct {
	Type string // "blob" | "tree"
	Path string
	ID   string // blob sha for files
}

// File is a single fetched remote file.
type File struct {
	Content      string
	BlobID       string
	LastCommitID string // only populated by adapters that expose it
}

// Adapter is the polymorphic remote-I/O boundary a sync Engine drives.
// Two implementations ship: a tree-API adapter and a commits-API adapter.
type Adapter interface {
	ListDirectoryRecursive(ctx context.Context, path string) ([]Entry, error)
	GetFile(ctx context.Context, path string) (File, error)
	// CommitMultipleFiles writes every entry in writes and removes every
	// path in deletes, returning the resulting commit id. TreeAdapter does
	// this in one commit; CommitsAdapter makes one commit per file.
	CommitMultipleFiles(ctx context.Context, writes map[string]string, deletes []string, message string) (string, error)
	DeleteDirectory(ctx context.Context, path, message string) error
	TestConnection(ctx context.Context) error
}
