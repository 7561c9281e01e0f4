// Package processor answers queries against the cached and updated roots.
package processor

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/framing"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Response is the answer to one query.
type Response struct {
	// Payload holds the framed matches of the cached roots followed by those
	// of the updated roots.
	Payload []byte
	// Diagnostics holds one error per subtree that could not be read.
	Diagnostics []error
}

// Processor runs queries over the configured roots.
// It is safe for concurrent use.
type Processor struct {
	cfg         *domain.Config
	walker      ports.Walker
	cache       ports.CacheManager
	matcher     ports.Matcher
	tracer      ports.Tracer
	metrics     ports.Metrics
	parallelism int

	rebuilds singleflight.Group
}

// Option configures a Processor.
type Option func(*Processor)

// WithTracer sets the tracer spans are started on.
func WithTracer(tracer ports.Tracer) Option {
	return func(p *Processor) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithMetrics sets the recorder of query, walk and cache counters.
func WithMetrics(metrics ports.Metrics) Option {
	return func(p *Processor) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// WithParallelism bounds how many roots of one branch are walked at once.
func WithParallelism(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// New creates a Processor for cfg.
func New(
	cfg *domain.Config,
	walker ports.Walker,
	cache ports.CacheManager,
	matcher ports.Matcher,
	opts ...Option,
) *Processor {
	p := &Processor{
		cfg:         cfg,
		walker:      walker,
		cache:       cache,
		matcher:     matcher,
		tracer:      noopTracer{},
		metrics:     noopMetrics{},
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the configuration the processor was built with.
func (p *Processor) Config() *domain.Config {
	return p.cfg
}

type branchResult struct {
	payload     []byte
	diagnostics []error
}

// Query returns the framed paths below the configured roots that match request.
//
// The cached and updated branches run concurrently. Cached matches precede
// updated matches, and a path under both kinds of root appears in both.
// Unreadable subtrees are reported as diagnostics and never fail the query.
func (p *Processor) Query(ctx context.Context, request string) (*Response, error) {
	queryID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "query")
	defer span.End()
	span.SetAttribute("query.id", queryID)
	span.SetAttribute("query.text", request)

	p.metrics.QueryServed()

	var cached, updated branchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cached, err = p.queryCached(gctx, request)
		return err
	})
	g.Go(func() error {
		var err error
		updated, err = p.queryUpdated(gctx, request)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, zerr.With(zerr.Wrap(err, domain.ErrQueryFailed.Error()), "query_id", queryID)
	}

	payload := make([]byte, 0, len(cached.payload)+len(updated.payload))
	payload = append(payload, cached.payload...)
	payload = append(payload, updated.payload...)

	var diagnostics []error
	diagnostics = append(diagnostics, cached.diagnostics...)
	diagnostics = append(diagnostics, updated.diagnostics...)
	p.metrics.WalkDiagnostics(len(diagnostics))

	span.SetAttribute("query.bytes", len(payload))
	span.SetAttribute("query.diagnostics", len(diagnostics))

	return &Response{Payload: payload, Diagnostics: diagnostics}, nil
}

// QuerySync runs Query to completion without a caller context.
func (p *Processor) QuerySync(request string) (*Response, error) {
	return p.Query(context.Background(), request)
}

// Rebuild walks the cached roots and replaces the cache snapshot.
func (p *Processor) Rebuild(ctx context.Context) (domain.WalkResult, error) {
	ctx, span := p.tracer.Start(ctx, "cache.rebuild")
	defer span.End()

	result, err := p.rebuild(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.WalkResult{}, err
	}
	span.SetAttribute("cache.paths", len(result.Paths))
	return result, nil
}

// Invalidate empties the cache snapshot so the next query re-walks the cached roots.
func (p *Processor) Invalidate(ctx context.Context) error {
	return p.cache.Invalidate(ctx)
}

func (p *Processor) queryCached(ctx context.Context, request string) (branchResult, error) {
	if len(p.cfg.CachedRoots) == 0 {
		return branchResult{}, nil
	}

	ctx, span := p.tracer.Start(ctx, "query.cached")
	defer span.End()

	candidates, diagnostics, err := p.cachedCandidates(ctx)
	if err != nil {
		span.RecordError(err)
		return branchResult{}, err
	}

	payload, err := p.filter(request, candidates)
	if err != nil {
		span.RecordError(err)
		return branchResult{}, err
	}
	return branchResult{payload: payload, diagnostics: diagnostics}, nil
}

// cachedCandidates returns the snapshot contents, rebuilding the snapshot
// when it is empty or cannot be decoded.
func (p *Processor) cachedCandidates(ctx context.Context) ([]string, []error, error) {
	blob, err := p.cache.ReadAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	var diagnostics []error
	if len(blob) > 0 {
		paths, err := framing.Decode(blob)
		if err == nil {
			p.metrics.CacheHit()
			return paths, nil, nil
		}
		diagnostics = append(diagnostics, fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err))
	}

	p.metrics.CacheMiss()
	result, err := p.rebuild(ctx)
	if err != nil {
		return nil, nil, err
	}
	return result.Paths, append(diagnostics, result.Diagnostics...), nil
}

// rebuild collapses concurrent rebuilds into one walk.
//
// The shared walk runs detached from the caller that started it, so a caller
// that gives up only stops waiting. The snapshot is still written for the
// callers that remain and for later queries.
func (p *Processor) rebuild(ctx context.Context) (domain.WalkResult, error) {
	ch := p.rebuilds.DoChan("cached", func() (any, error) {
		shared := context.WithoutCancel(ctx)
		result, err := p.walkRoots(shared, p.cfg.CachedRoots)
		if err != nil {
			return domain.WalkResult{}, err
		}
		if _, err := p.cache.WriteAll(shared, domain.NewServices(result.Paths)); err != nil {
			return domain.WalkResult{}, err
		}
		return result, nil
	})

	select {
	case <-ctx.Done():
		return domain.WalkResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.WalkResult{}, res.Err
		}
		return res.Val.(domain.WalkResult), nil //nolint:forcetypeassert // the closure always returns a WalkResult
	}
}

func (p *Processor) queryUpdated(ctx context.Context, request string) (branchResult, error) {
	if len(p.cfg.UpdatedRoots) == 0 {
		return branchResult{}, nil
	}

	ctx, span := p.tracer.Start(ctx, "query.updated")
	defer span.End()

	result, err := p.walkRoots(ctx, p.cfg.UpdatedRoots)
	if err != nil {
		span.RecordError(err)
		return branchResult{}, err
	}

	payload, err := p.filter(request, result.Paths)
	if err != nil {
		span.RecordError(err)
		return branchResult{}, err
	}
	return branchResult{payload: payload, diagnostics: result.Diagnostics}, nil
}

// walkRoots walks roots concurrently and concatenates the results in root order.
func (p *Processor) walkRoots(ctx context.Context, roots []string) (domain.WalkResult, error) {
	results := make([]domain.WalkResult, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, root := range roots {
		g.Go(func() error {
			p.metrics.WalkStarted()
			result, err := p.walker.Walk(gctx, root)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.WalkResult{}, err
	}

	var merged domain.WalkResult
	for _, r := range results {
		merged.Merge(r)
	}
	return dropNonUTF8(merged), nil
}

// dropNonUTF8 removes the paths that cannot be framed and reports each one
// as a diagnostic.
func dropNonUTF8(result domain.WalkResult) domain.WalkResult {
	out := domain.WalkResult{
		Paths:       make([]string, 0, len(result.Paths)),
		Diagnostics: result.Diagnostics,
	}
	for _, path := range result.Paths {
		if utf8.ValidString(path) {
			out.Paths = append(out.Paths, path)
			continue
		}
		out.Diagnostics = append(out.Diagnostics,
			zerr.With(zerr.Wrap(domain.ErrPathNotUTF8, strconv.Quote(path)), "path", path))
	}
	return out
}

func (p *Processor) filter(request string, candidates []string) ([]byte, error) {
	var out []byte
	for _, path := range candidates {
		if !p.matcher.Match(request, path) {
			continue
		}
		var err error
		if out, err = framing.Append(out, path); err != nil {
			return nil, err
		}
	}
	return out, nil
}
