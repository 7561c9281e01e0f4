package processor

import (
	"github.com/spf13/afero"
	"go.trai.ch/locus/internal/adapters/fs"      //nolint:depguard // Wired in engine wiring
	"go.trai.ch/locus/internal/adapters/matcher" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
)

// Factory builds processors for loaded configurations.
type Factory struct {
	fs      afero.Fs
	caches  ports.CacheFactory
	tracer  ports.Tracer
	metrics ports.Metrics
}

// NewFactory creates a Factory sharing fsys, caches, tracer and metrics across processors.
func NewFactory(fsys afero.Fs, caches ports.CacheFactory, tracer ports.Tracer, metrics ports.Metrics) *Factory {
	return &Factory{fs: fsys, caches: caches, tracer: tracer, metrics: metrics}
}

// New validates cfg and builds its processor.
func (f *Factory) New(cfg *domain.Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := matcher.New(cfg.Matcher)
	if err != nil {
		return nil, err
	}

	cache, err := f.caches.Open(cfg)
	if err != nil {
		return nil, err
	}

	walker := fs.NewWalker(f.fs, fs.NewChainFromConfig(f.fs, cfg))
	return New(cfg, walker, cache, m, WithTracer(f.tracer), WithMetrics(f.metrics)), nil
}
