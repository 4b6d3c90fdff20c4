package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves objects and object metadata from blob storage.
type BlobReader interface {
	// Get returns ErrNotFound when no object exists at path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports cold ledger data to blob storage. Archived records stay
// in the primary store; pruning is a separate, explicit step.
type Archiver interface {
	// ArchiveAudit exports audit entries recorded before the cutoff and
	// returns the number of exported records.
	ArchiveAudit(ctx context.Context, before time.Time) (int64, error)
	// ArchiveCommitments exports commitments that reached a terminal status
	// before the cutoff and returns the number of exported records.
	ArchiveCommitments(ctx context.Context, before time.Time) (int64, error)
}
