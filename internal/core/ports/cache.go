package ports

import (
	"context"

	"go.trai.ch/locus/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks

// CacheManager owns the single whole-index snapshot of the cached roots.
type CacheManager interface {
	// ReadAll returns the framed snapshot. An empty result is a cache miss.
	ReadAll(ctx context.Context) ([]byte, error)

	// WriteAll replaces the snapshot with the framed form of services and
	// returns the bytes it persisted. Concurrent writers never interleave.
	WriteAll(ctx context.Context, services []domain.Service) ([]byte, error)

	// Invalidate empties the snapshot so the next query re-walks the cached roots.
	Invalidate(ctx context.Context) error
}

// BlobStore persists one opaque byte blob.
type BlobStore interface {
	// Load returns the stored blob, or an empty slice if nothing was stored.
	Load(ctx context.Context) ([]byte, error)

	// Store replaces the blob. Readers observe either the old or the new blob.
	Store(ctx context.Context, data []byte) error

	// Clear removes the blob.
	Clear(ctx context.Context) error
}

// CacheFactory opens the cache manager backing a configuration.
type CacheFactory interface {
	Open(cfg *domain.Config) (CacheManager, error)
}
