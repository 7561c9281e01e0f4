package processor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/locus/internal/adapters/cache"
	"go.trai.ch/locus/internal/adapters/fs"
	"go.trai.ch/locus/internal/adapters/matcher"
	"go.trai.ch/locus/internal/adapters/telemetry"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/framing"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/locus/internal/core/ports/mocks"
	"go.trai.ch/locus/internal/engine/processor"
	"go.uber.org/mock/gomock"
)

// countingWalker counts walks per root.
type countingWalker struct {
	ports.Walker
	mu    sync.Mutex
	walks map[string]int
	total atomic.Int32
}

func newCountingWalker(inner ports.Walker) *countingWalker {
	return &countingWalker{Walker: inner, walks: make(map[string]int)}
}

func (w *countingWalker) Walk(ctx context.Context, root string) (domain.WalkResult, error) {
	w.mu.Lock()
	w.walks[root]++
	w.mu.Unlock()
	w.total.Add(1)
	return w.Walker.Walk(ctx, root)
}

// gatedWalker holds every walk until release is closed.
type gatedWalker struct {
	*countingWalker
	release chan struct{}
}

func (w *gatedWalker) Walk(ctx context.Context, root string) (domain.WalkResult, error) {
	<-w.release
	return w.countingWalker.Walk(ctx, root)
}

func newMemTree(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	memFs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, memFs.MkdirAll(filepath.Dir(f), domain.DirPerm))
		require.NoError(t, afero.WriteFile(memFs, f, []byte("x"), domain.FilePerm))
	}
	return memFs
}

func newConfig(cached, updated []string) *domain.Config {
	return &domain.Config{
		CachedRoots:    cached,
		UpdatedRoots:   updated,
		BundleSuffixes: domain.DefaultBundleSuffixes,
		Matcher:        domain.MatcherFuzzy,
		CachePath:      "memory",
	}
}

func encode(t *testing.T, paths ...string) []byte {
	t.Helper()
	out, err := framing.Encode(paths)
	require.NoError(t, err)
	return out
}

func TestQuery_UpdatedRootEndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), domain.PrivateFilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".b.txt"), []byte("x"), domain.PrivateFilePerm))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "c.txt"), []byte("x"), domain.PrivateFilePerm))

	osFs := afero.NewOsFs()
	cfg := newConfig(nil, []string{root})
	walker := fs.NewWalker(osFs, fs.NewChainFromConfig(osFs, cfg))
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{})

	resp, err := p.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, resp.Diagnostics)

	paths, err := framing.Decode(resp.Payload)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.txt")}, paths)
}

func TestQuery_PopulatesCacheOnce(t *testing.T) {
	memFs := newMemTree(t, "/apps/Zed.app/Contents/Info.plist", "/apps/tools/zip.txt", "/apps/readme.md")
	cfg := newConfig([]string{"/apps"}, nil)
	walker := newCountingWalker(fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg)))
	manager := cache.NewManager(cache.NewMemoryStore())
	p := processor.New(cfg, walker, manager, matcher.Fuzzy{})

	resp, err := p.Query(context.Background(), "z")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/apps/Zed.app", "/apps/tools/zip.txt"), resp.Payload)
	assert.Equal(t, int32(1), walker.total.Load())

	snapshot, err := manager.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/apps/Zed.app", "/apps/readme.md", "/apps/tools/zip.txt"), snapshot,
		"the snapshot holds the whole walk, not only the matches")

	resp, err = p.Query(context.Background(), "readme")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/apps/readme.md"), resp.Payload)
	assert.Equal(t, int32(1), walker.total.Load(), "a populated cache is not re-walked")
}

func TestQuery_UpdatedRootsAlwaysWalk(t *testing.T) {
	memFs := newMemTree(t, "/work/a.txt")
	cfg := newConfig(nil, []string{"/work"})
	walker := newCountingWalker(fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg)))
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{})

	_, err := p.Query(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(memFs, "/work/b.txt", []byte("x"), domain.FilePerm))
	resp, err := p.Query(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, encode(t, "/work/a.txt", "/work/b.txt"), resp.Payload)
	assert.Equal(t, 2, walker.walks["/work"])
}

func TestQuery_OverlappingRootsAreNotDeduplicated(t *testing.T) {
	memFs := newMemTree(t, "/shared/x.txt")
	cfg := newConfig([]string{"/shared"}, []string{"/shared"})
	walker := fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg))
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{})

	resp, err := p.Query(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/shared/x.txt", "/shared/x.txt"), resp.Payload)
}

func TestQuery_CachedBeforeUpdatedAndRootOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	walker := mocks.NewMockWalker(ctrl)
	walker.EXPECT().Walk(gomock.Any(), "/c1").Return(domain.WalkResult{Paths: []string{"/c1/a"}}, nil)
	walker.EXPECT().Walk(gomock.Any(), "/c2").Return(domain.WalkResult{Paths: []string{"/c2/a"}}, nil)
	walker.EXPECT().Walk(gomock.Any(), "/u1").Return(domain.WalkResult{Paths: []string{"/u1/a"}}, nil)
	walker.EXPECT().Walk(gomock.Any(), "/u2").Return(domain.WalkResult{Paths: []string{"/u2/a"}}, nil)

	cfg := newConfig([]string{"/c1", "/c2"}, []string{"/u1", "/u2"})
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{},
		processor.WithParallelism(4))

	resp, err := p.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/c1/a", "/c2/a", "/u1/a", "/u2/a"), resp.Payload)
}

func TestQuery_DiagnosticsDoNotFailQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	walker := mocks.NewMockWalker(ctrl)
	cachedDiag := errors.New("cached subtree unreadable")
	updatedDiag := errors.New("updated subtree unreadable")
	walker.EXPECT().Walk(gomock.Any(), "/c").Return(domain.WalkResult{
		Paths:       []string{"/c/a"},
		Diagnostics: []error{cachedDiag},
	}, nil)
	walker.EXPECT().Walk(gomock.Any(), "/u").Return(domain.WalkResult{
		Diagnostics: []error{updatedDiag},
	}, nil)

	metrics := mocks.NewMockMetrics(ctrl)
	metrics.EXPECT().QueryServed()
	metrics.EXPECT().CacheMiss()
	metrics.EXPECT().WalkStarted().Times(2)
	metrics.EXPECT().WalkDiagnostics(2)

	cfg := newConfig([]string{"/c"}, []string{"/u"})
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{},
		processor.WithMetrics(metrics))

	resp, err := p.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/c/a"), resp.Payload)
	assert.Equal(t, []error{cachedDiag, updatedDiag}, resp.Diagnostics)
}

func TestQuery_CacheHitMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	walker := mocks.NewMockWalker(ctrl)
	manager := mocks.NewMockCacheManager(ctrl)
	manager.EXPECT().ReadAll(gomock.Any()).Return(encode(t, "/c/zed"), nil)

	metrics := mocks.NewMockMetrics(ctrl)
	metrics.EXPECT().QueryServed()
	metrics.EXPECT().CacheHit()
	metrics.EXPECT().WalkDiagnostics(0)

	p := processor.New(newConfig([]string{"/c"}, nil), walker, manager, matcher.Fuzzy{},
		processor.WithMetrics(metrics))

	resp, err := p.Query(context.Background(), "zed")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/c/zed"), resp.Payload)
}

func TestQuery_CorruptCacheIsRebuilt(t *testing.T) {
	ctrl := gomock.NewController(t)
	walker := mocks.NewMockWalker(ctrl)
	walker.EXPECT().Walk(gomock.Any(), "/c").Return(domain.WalkResult{Paths: []string{"/c/a"}}, nil)

	store := cache.NewMemoryStore()
	require.NoError(t, store.Store(context.Background(), []byte{0x00, 0x09, 'x'}))
	manager := cache.NewManager(store)

	p := processor.New(newConfig([]string{"/c"}, nil), walker, manager, matcher.Fuzzy{})

	resp, err := p.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/c/a"), resp.Payload)
	require.Len(t, resp.Diagnostics, 1)
	assert.ErrorIs(t, resp.Diagnostics[0], domain.ErrCacheCorrupt)
	assert.ErrorIs(t, resp.Diagnostics[0], domain.ErrTruncatedPayload)

	snapshot, err := manager.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/c/a"), snapshot)
}

func TestQuery_NoCachedRootsSkipsCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	manager := mocks.NewMockCacheManager(ctrl)
	walker := mocks.NewMockWalker(ctrl)
	walker.EXPECT().Walk(gomock.Any(), "/u").Return(domain.WalkResult{}, nil)

	p := processor.New(newConfig(nil, []string{"/u"}), walker, manager, matcher.Fuzzy{})

	resp, err := p.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, resp.Payload)
	assert.NotNil(t, resp.Payload)
}

func TestQuery_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		setup   func(walker *mocks.MockWalker, manager *mocks.MockCacheManager)
		wantErr string
	}{
		{
			name: "cache read",
			setup: func(walker *mocks.MockWalker, manager *mocks.MockCacheManager) {
				manager.EXPECT().ReadAll(gomock.Any()).Return(nil, boom)
				walker.EXPECT().Walk(gomock.Any(), "/u").Return(domain.WalkResult{}, nil).AnyTimes()
			},
			wantErr: "boom",
		},
		{
			name: "cache write",
			setup: func(walker *mocks.MockWalker, manager *mocks.MockCacheManager) {
				manager.EXPECT().ReadAll(gomock.Any()).Return(nil, nil)
				manager.EXPECT().WriteAll(gomock.Any(), gomock.Any()).Return(nil, boom)
				walker.EXPECT().Walk(gomock.Any(), "/c").Return(domain.WalkResult{Paths: []string{"/c/a"}}, nil)
				walker.EXPECT().Walk(gomock.Any(), "/u").Return(domain.WalkResult{}, nil).AnyTimes()
			},
			wantErr: "boom",
		},
		{
			name: "walk",
			setup: func(walker *mocks.MockWalker, manager *mocks.MockCacheManager) {
				manager.EXPECT().ReadAll(gomock.Any()).Return(encode(t, "/c/a"), nil).AnyTimes()
				walker.EXPECT().Walk(gomock.Any(), "/u").Return(domain.WalkResult{}, context.Canceled)
			},
			wantErr: context.Canceled.Error(),
		},
		{
			name: "oversized match",
			setup: func(walker *mocks.MockWalker, manager *mocks.MockCacheManager) {
				manager.EXPECT().ReadAll(gomock.Any()).Return(encode(t, "/c/a"), nil).AnyTimes()
				walker.EXPECT().Walk(gomock.Any(), "/u").Return(domain.WalkResult{
					Paths: []string{"/u/" + strings.Repeat("a", framing.MaxPayload)},
				}, nil)
			},
			wantErr: domain.ErrRecordTooLarge.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			walker := mocks.NewMockWalker(ctrl)
			manager := mocks.NewMockCacheManager(ctrl)
			tt.setup(walker, manager)

			p := processor.New(newConfig([]string{"/c"}, []string{"/u"}), walker, manager, matcher.Fuzzy{})

			resp, err := p.Query(context.Background(), "a")
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorContains(t, err, domain.ErrQueryFailed.Error())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestQuerySync(t *testing.T) {
	memFs := newMemTree(t, "/work/alpha.txt", "/work/beta.txt")
	cfg := newConfig(nil, []string{"/work"})
	walker := fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg))
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Substring{})

	resp, err := p.QuerySync("ALP")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/work/alpha.txt"), resp.Payload)
}

func TestQuery_ConcurrentQueriesShareOneRebuild(t *testing.T) {
	memFs := newMemTree(t, "/apps/a.txt", "/apps/b.txt")
	cfg := newConfig([]string{"/apps"}, nil)
	walker := newCountingWalker(fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg)))
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := p.Query(context.Background(), "")
			assert.NoError(t, err)
			assert.Equal(t, encode(t, "/apps/a.txt", "/apps/b.txt"), resp.Payload)
		}()
	}
	wg.Wait()

	resp, err := p.Query(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/apps/b.txt"), resp.Payload)
	assert.LessOrEqual(t, walker.total.Load(), int32(16))
}

func TestQuery_CancelledCallerLeavesSharedRebuild(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		memFs := newMemTree(t, "/apps/a.txt", "/apps/b.txt")
		cfg := newConfig([]string{"/apps"}, nil)
		walker := &gatedWalker{
			countingWalker: newCountingWalker(fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg))),
			release:        make(chan struct{}),
		}
		manager := cache.NewManager(cache.NewMemoryStore())
		p := processor.New(cfg, walker, manager, matcher.Fuzzy{})

		ctx, cancel := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := p.Query(ctx, "a")
			firstErr <- err
		}()
		synctest.Wait()

		type outcome struct {
			resp *processor.Response
			err  error
		}
		second := make(chan outcome, 1)
		go func() {
			resp, err := p.Query(context.Background(), "a")
			second <- outcome{resp: resp, err: err}
		}()
		synctest.Wait()

		cancel()
		require.ErrorIs(t, <-firstErr, context.Canceled)

		close(walker.release)
		got := <-second
		require.NoError(t, got.err)
		assert.Equal(t, encode(t, "/apps/a.txt"), got.resp.Payload)
		assert.Equal(t, int32(1), walker.total.Load(), "both queries share one walk")

		snapshot, err := manager.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, encode(t, "/apps/a.txt", "/apps/b.txt"), snapshot)
	})
}

func TestQuery_SkipsPathsThatAreNotUTF8(t *testing.T) {
	memFs := newMemTree(t, "/c/a.txt", "/c/\xff.txt", "/u/a.txt", "/u/\xfe.txt")
	cfg := newConfig([]string{"/c"}, []string{"/u"})
	walker := fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg))
	manager := cache.NewManager(cache.NewMemoryStore())
	p := processor.New(cfg, walker, manager, matcher.Fuzzy{})
	ctx := context.Background()

	// The first query rebuilds the cache and reports both skipped paths; the
	// second reads the snapshot and only walks the updated root again.
	for _, wantDiagnostics := range []int{2, 1} {
		resp, err := p.Query(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, encode(t, "/c/a.txt", "/u/a.txt"), resp.Payload)
		require.Len(t, resp.Diagnostics, wantDiagnostics)
		for _, d := range resp.Diagnostics {
			assert.ErrorIs(t, d, domain.ErrPathNotUTF8)
		}
	}

	snapshot, err := manager.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/c/a.txt"), snapshot)

	result, err := p.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/a.txt"}, result.Paths)
	require.Len(t, result.Diagnostics, 1)
	assert.ErrorContains(t, result.Diagnostics[0], `"/c/\xff.txt"`)
}

func TestRebuildAndInvalidate(t *testing.T) {
	memFs := newMemTree(t, "/apps/a.txt")
	cfg := newConfig([]string{"/apps"}, nil)
	walker := newCountingWalker(fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg)))
	manager := cache.NewManager(cache.NewMemoryStore())
	p := processor.New(cfg, walker, manager, matcher.Fuzzy{})
	ctx := context.Background()

	result, err := p.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/apps/a.txt"}, result.Paths)

	_, err = p.Query(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(1), walker.total.Load(), "a warmed cache serves the query")

	require.NoError(t, p.Invalidate(ctx))
	snapshot, err := manager.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	_, err = p.Query(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), walker.total.Load(), "an invalidated cache is re-walked")
}

func TestQuery_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	memFs := newMemTree(t, "/c/a.txt", "/u/b.txt")
	cfg := newConfig([]string{"/c"}, []string{"/u"})
	walker := fs.NewWalker(memFs, fs.NewChainFromConfig(memFs, cfg))
	p := processor.New(cfg, walker, cache.NewManager(cache.NewMemoryStore()), matcher.Fuzzy{},
		processor.WithTracer(telemetry.NewOTelTracerFromProvider(tp)))

	_, err := p.Query(context.Background(), "")
	require.NoError(t, err)

	names := make(map[string]int)
	var root sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		names[s.Name()]++
		if s.Name() == "query" {
			root = s
		}
	}
	assert.Equal(t, map[string]int{"query": 1, "query.cached": 1, "query.updated": 1}, names)
	require.NotNil(t, root)
	for _, s := range recorder.Ended() {
		if s.Name() != "query" {
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}

func TestFactory_New(t *testing.T) {
	memFs := newMemTree(t, "/work/a.txt")
	factory := processor.NewFactory(memFs, cacheFactoryFunc(func(*domain.Config) (ports.CacheManager, error) {
		return cache.NewManager(cache.NewMemoryStore()), nil
	}), telemetry.NewNoOpTracer(), nil)

	p, err := factory.New(newConfig(nil, []string{"/work"}))
	require.NoError(t, err)
	resp, err := p.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, encode(t, "/work/a.txt"), resp.Payload)

	_, err = factory.New(&domain.Config{UpdatedRoots: []string{"/work"}, Matcher: "regex"})
	assert.ErrorContains(t, err, domain.ErrUnknownMatcher.Error())
}

type cacheFactoryFunc func(*domain.Config) (ports.CacheManager, error)

func (f cacheFactoryFunc) Open(cfg *domain.Config) (ports.CacheManager, error) {
	return f(cfg)
}
