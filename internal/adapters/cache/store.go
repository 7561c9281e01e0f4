// Package cache implements the whole-index snapshot cache and its blob stores.
package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
)

const lockRetryDelay = 10 * time.Millisecond

var (
	_ ports.BlobStore = (*FileStore)(nil)
	_ ports.BlobStore = (*MemoryStore)(nil)
)

// FileStore implements ports.BlobStore with a single file.
//
// Writers hold an exclusive flock on a sibling lock file, so writers in other
// processes are serialized too. The blob is replaced with a rename, so readers
// never observe a partial write and need no lock.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a FileStore for the blob at path.
func NewFileStore(path string) *FileStore {
	path = filepath.Clean(path)
	return &FileStore{
		path: path,
		lock: flock.New(path + domain.LockFileExt),
	}
}

// Path returns the blob location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the blob, or nil if it does not exist.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	//nolint:gosec // Path is cleaned and provided by trusted configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "path", s.path)
	}
	return data, nil
}

// Store atomically replaces the blob with data.
func (s *FileStore) Store(ctx context.Context, data []byte) error {
	return s.locked(ctx, func() error {
		return s.writeAtomic(data)
	})
}

// Clear removes the blob.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.locked(ctx, func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", s.path)
		}
		return nil
	})
}

func (s *FileStore) locked(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", s.path)
	}

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheLockFailed.Error()), "path", s.lock.Path())
	}
	if !ok {
		return zerr.With(domain.ErrCacheLockFailed, "path", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(s.path)+"-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", s.path)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", tmpPath)
	}
	if err := os.Chmod(tmpPath, domain.PrivateFilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", tmpPath)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", s.path)
	}
	committed = true
	return nil
}

// MemoryStore implements ports.BlobStore in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the blob.
func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

// Store replaces the blob with a copy of data.
func (s *MemoryStore) Store(_ context.Context, data []byte) error {
	cp := append([]byte{}, data...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = cp
	return nil
}

// Clear removes the blob.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}
