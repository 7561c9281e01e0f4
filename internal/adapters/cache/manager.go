package cache

import (
	"context"
	"sync"

	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/framing"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.CacheManager = (*Manager)(nil)
	_ ports.CacheFactory = (*Factory)(nil)
)

// Manager implements ports.CacheManager over a BlobStore.
type Manager struct {
	mu    sync.Mutex
	store ports.BlobStore
}

// NewManager creates a Manager persisting into store.
func NewManager(store ports.BlobStore) *Manager {
	return &Manager{store: store}
}

// ReadAll returns the stored snapshot. A missing snapshot reads as empty.
func (m *Manager) ReadAll(ctx context.Context) ([]byte, error) {
	data, err := m.store.Load(ctx)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}
	return data, nil
}

// WriteAll frames services, replaces the snapshot and returns the framed bytes.
func (m *Manager) WriteAll(ctx context.Context, services []domain.Service) ([]byte, error) {
	data, err := framing.EncodeServices(services)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Store(ctx, data); err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return data, nil
}

// Invalidate clears the snapshot.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return nil
}

// Factory opens file-backed managers keyed by the configured cache path.
// Managers are shared per path so writers in one process serialize on the
// same mutex.
type Factory struct {
	mu       sync.Mutex
	managers map[string]*Manager
}

// NewFactory creates an empty Factory.
func NewFactory() *Factory {
	return &Factory{managers: make(map[string]*Manager)}
}

// Open returns the manager for cfg.CachePath.
func (f *Factory) Open(cfg *domain.Config) (ports.CacheManager, error) {
	if cfg.CachePath == "" {
		return nil, zerr.With(domain.ErrConfigInvalid, "field", "cache")
	}

	store := NewFileStore(cfg.CachePath)

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.managers[store.Path()]; ok {
		return m, nil
	}
	m := NewManager(store)
	f.managers[store.Path()] = m
	return m, nil
}
