package app_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/locus/internal/adapters/daemon"
	"go.trai.ch/locus/internal/app"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/framing"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/locus/internal/core/ports/mocks"
	"go.trai.ch/locus/internal/engine/processor"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type fakeEngine struct {
	response    *processor.Response
	rebuild     domain.WalkResult
	err         error
	invalidated bool
}

func (e *fakeEngine) Query(context.Context, string) (*processor.Response, error) {
	return e.response, e.err
}

func (e *fakeEngine) Rebuild(context.Context) (domain.WalkResult, error) {
	return e.rebuild, e.err
}

func (e *fakeEngine) Invalidate(context.Context) error {
	e.invalidated = true
	return e.err
}

type fixture struct {
	loader    *mocks.MockConfigLoader
	connector *mocks.MockDaemonConnector
	logger    *mocks.MockLogger
	engine    *fakeEngine
	built     int
	app       *app.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		loader:    mocks.NewMockConfigLoader(ctrl),
		connector: mocks.NewMockDaemonConnector(ctrl),
		logger:    mocks.NewMockLogger(ctrl),
		engine:    &fakeEngine{},
	}
	engines := app.EngineFactoryFunc(func(*domain.Config) (app.Engine, error) {
		f.built++
		return f.engine, nil
	})
	f.app = app.New(f.loader, engines, f.connector, f.logger, http.NotFoundHandler())
	return f
}

func testConfig() *domain.Config {
	return &domain.Config{
		SourcePath:     "/etc/locus/locus.yaml",
		CachedRoots:    []string{"/opt"},
		UpdatedRoots:   []string{"/home/me"},
		BundleSuffixes: domain.DefaultBundleSuffixes,
		Matcher:        domain.MatcherFuzzy,
		CachePath:      "/var/cache/locus/index.bin",
	}
}

func TestApp_QueryLocal(t *testing.T) {
	f := newFixture(t)
	payload, err := framing.Encode([]string{"/opt/a.txt"})
	require.NoError(t, err)
	f.engine.response = &processor.Response{
		Payload:     payload,
		Diagnostics: []error{zerr.With(domain.ErrDirReadFailed, "path", "/opt/locked")},
	}

	f.app.Configure(app.GlobalOptions{ConfigPath: "locus.yaml"})
	f.loader.EXPECT().Load("locus.yaml").Return(testConfig(), nil)
	f.logger.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		assert.Contains(t, msg, domain.ErrDirReadFailed.Error())
	})

	result, err := f.app.Query(context.Background(), "a", app.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, payload, result.Payload)
	assert.Len(t, result.Diagnostics, 1)
	assert.Equal(t, 1, f.built)
}

func TestApp_QueryDaemon(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDaemonClient(ctrl)
	cfg := testConfig()

	f.loader.EXPECT().Load("").Return(cfg, nil)
	f.connector.EXPECT().Connect(gomock.Any(), cfg).Return(client, nil)
	client.EXPECT().Query(gomock.Any(), "a").Return(&ports.QueryResult{
		Payload:     []byte{},
		Diagnostics: []string{"failed to read directory"},
	}, nil)
	client.EXPECT().Close().Return(nil)
	f.logger.EXPECT().Warn("failed to read directory")

	result, err := f.app.Query(context.Background(), "a", app.QueryOptions{Daemon: true})
	require.NoError(t, err)
	assert.Empty(t, result.Payload)
	assert.Zero(t, f.built)
}

func TestApp_QueryErrors(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load("").Return(nil, domain.ErrConfigNotFound)

		_, err := f.app.Query(context.Background(), "a", app.QueryOptions{})
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to load configuration")
		assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	})

	t.Run("engine", func(t *testing.T) {
		f := newFixture(t)
		f.engine.err = domain.ErrQueryFailed
		f.loader.EXPECT().Load("").Return(testConfig(), nil)

		_, err := f.app.Query(context.Background(), "a", app.QueryOptions{})
		require.ErrorIs(t, err, domain.ErrQueryFailed)
	})

	t.Run("daemon spawn", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load("").Return(testConfig(), nil)
		f.connector.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil, domain.ErrDaemonSpawnFailed)

		_, err := f.app.Query(context.Background(), "a", app.QueryOptions{Daemon: true})
		require.ErrorIs(t, err, domain.ErrDaemonSpawnFailed)
	})
}

func TestApp_WarmCache(t *testing.T) {
	f := newFixture(t)
	f.engine.rebuild = domain.WalkResult{
		Paths:       []string{"/opt/a", "/opt/b"},
		Diagnostics: []error{domain.ErrDirReadFailed},
	}
	f.loader.EXPECT().Load("").Return(testConfig(), nil)
	gomock.InOrder(
		f.logger.EXPECT().Warn(domain.ErrDirReadFailed.Error()),
		f.logger.EXPECT().Info("cached 2 paths in /var/cache/locus/index.bin"),
	)

	require.NoError(t, f.app.WarmCache(context.Background()))
}

func TestApp_WarmCacheFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.err = domain.ErrCacheWriteFailed
	f.loader.EXPECT().Load("").Return(testConfig(), nil)

	err := f.app.WarmCache(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to warm cache")
}

func TestApp_NoCachedRoots(t *testing.T) {
	cfg := testConfig()
	cfg.CachedRoots = nil

	t.Run("warm", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load("").Return(cfg, nil)
		f.logger.EXPECT().Info("no cached roots configured, nothing to warm")

		require.NoError(t, f.app.WarmCache(context.Background()))
		assert.Zero(t, f.built)
	})

	t.Run("clear", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load("").Return(cfg, nil)
		f.logger.EXPECT().Info("no cached roots configured, nothing to clear")

		require.NoError(t, f.app.ClearCache(context.Background()))
		assert.Zero(t, f.built)
	})
}

func TestApp_ClearCache(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load("").Return(testConfig(), nil)
	f.logger.EXPECT().Info("cleared /var/cache/locus/index.bin")

	require.NoError(t, f.app.ClearCache(context.Background()))
	assert.True(t, f.engine.invalidated)
}

func TestApp_DaemonStatus(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load("").Return(testConfig(), nil)
		f.connector.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(nil, domain.ErrDaemonUnavailable)

		status, err := f.app.DaemonStatus(context.Background())
		require.NoError(t, err)
		assert.False(t, status.Running)
	})

	t.Run("running", func(t *testing.T) {
		f := newFixture(t)
		client := mocks.NewMockDaemonClient(gomock.NewController(t))
		f.loader.EXPECT().Load("").Return(testConfig(), nil)
		f.connector.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(client, nil)
		client.EXPECT().Status(gomock.Any()).Return(&ports.DaemonStatus{Running: true, PID: 42, QueriesServed: 7}, nil)
		client.EXPECT().Close().Return(nil)

		status, err := f.app.DaemonStatus(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Running)
		assert.Equal(t, 42, status.PID)
		assert.Equal(t, int64(7), status.QueriesServed)
	})
}

func TestApp_StopDaemon(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load("").Return(testConfig(), nil)
		f.connector.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(nil, domain.ErrDaemonUnavailable)
		f.logger.EXPECT().Info("daemon is not running")

		require.NoError(t, f.app.StopDaemon(context.Background()))
	})

	t.Run("running", func(t *testing.T) {
		f := newFixture(t)
		client := mocks.NewMockDaemonClient(gomock.NewController(t))
		f.loader.EXPECT().Load("").Return(testConfig(), nil)
		f.connector.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(client, nil)
		client.EXPECT().Shutdown(gomock.Any()).Return(nil)
		client.EXPECT().Close().Return(nil)
		f.logger.EXPECT().Info("daemon stopped")

		require.NoError(t, f.app.StopDaemon(context.Background()))
	})

	t.Run("shutdown fails", func(t *testing.T) {
		f := newFixture(t)
		client := mocks.NewMockDaemonClient(gomock.NewController(t))
		f.loader.EXPECT().Load("").Return(testConfig(), nil)
		f.connector.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(client, nil)
		client.EXPECT().Shutdown(gomock.Any()).Return(errors.New("broken pipe"))
		client.EXPECT().Close().Return(nil)

		require.ErrorContains(t, f.app.StopDaemon(context.Background()), "broken pipe")
	})
}

func TestApp_ServeDaemon(t *testing.T) {
	dir, err := os.MkdirTemp("", "locus")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "d.sock")

	f := newFixture(t)
	payload, err := framing.Encode([]string{"/opt/a.txt"})
	require.NoError(t, err)
	f.engine.response = &processor.Response{Payload: payload}

	f.loader.EXPECT().Load("").Return(testConfig(), nil)
	f.connector.EXPECT().SocketPath(gomock.Any()).Return(socketPath)
	f.logger.EXPECT().Info("daemon listening on " + socketPath)
	f.logger.EXPECT().Info("daemon stopped")

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.app.ServeDaemon(context.Background(), app.ServeOptions{
			IdleTimeout: time.Hour,
			MetricsAddr: "127.0.0.1:0",
		})
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	client, err := daemon.Dial(socketPath)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Query(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, payload, result.Payload)

	require.NoError(t, client.Shutdown(ctx))
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

type recordingLogger struct {
	ports.Logger
	json, quiet bool
}

func (l *recordingLogger) SetJSON(enabled bool)  { l.json = enabled }
func (l *recordingLogger) SetQuiet(enabled bool) { l.quiet = enabled }

func TestApp_Configure(t *testing.T) {
	log := &recordingLogger{}
	a := app.New(nil, nil, nil, log, nil)

	a.Configure(app.GlobalOptions{LogJSON: true, Quiet: true})

	assert.True(t, log.json)
	assert.True(t, log.quiet)
}
