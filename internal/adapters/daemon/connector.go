package daemon

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	pollInterval    = 100 * time.Millisecond
	maxPollDuration = 5 * time.Second
	pingTimeout     = time.Second
)

// Connector implements ports.DaemonConnector. Each configuration gets its
// own daemon, addressed by the configuration's instance key.
type Connector struct {
	executablePath string
	runtimeDir     string
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithRuntimeDir places sockets and logs in dir instead of the per-user runtime directory.
func WithRuntimeDir(dir string) ConnectorOption {
	return func(c *Connector) {
		c.runtimeDir = dir
	}
}

// WithExecutable sets the binary spawned as the daemon.
func WithExecutable(path string) ConnectorOption {
	return func(c *Connector) {
		c.executablePath = path
	}
}

// NewConnector creates a connector spawning the running executable.
func NewConnector(opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.executablePath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to determine executable path")
		}
		c.executablePath = exe
	}
	return c, nil
}

// SocketPath returns the socket of the daemon serving cfg.
func (c *Connector) SocketPath(cfg *domain.Config) string {
	if c.runtimeDir != "" {
		return filepath.Join(c.runtimeDir, cfg.InstanceKey()+domain.DaemonSocketExt)
	}
	return domain.DefaultDaemonSocketPath(cfg.InstanceKey())
}

// LogPath returns the log file of the daemon serving cfg.
func (c *Connector) LogPath(cfg *domain.Config) string {
	if c.runtimeDir != "" {
		return filepath.Join(c.runtimeDir, cfg.InstanceKey()+domain.DaemonLogExt)
	}
	return domain.DefaultDaemonLogPath(cfg.InstanceKey())
}

// Connect returns a client, spawning the daemon if it does not answer.
func (c *Connector) Connect(ctx context.Context, cfg *domain.Config) (ports.DaemonClient, error) {
	if client, err := c.Dial(ctx, cfg); err == nil {
		return client, nil
	}

	if err := c.Spawn(ctx, cfg); err != nil {
		return nil, err
	}

	client, err := c.Dial(ctx, cfg)
	if err != nil {
		return nil, zerr.Wrap(err, "daemon started but is not responsive")
	}
	return client, nil
}

// Dial returns a client to a running daemon, or ErrDaemonUnavailable.
func (c *Connector) Dial(ctx context.Context, cfg *domain.Config) (ports.DaemonClient, error) {
	socketPath := c.SocketPath(cfg)
	client, err := Dial(socketPath)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrDaemonUnavailable.Error()), "socket", socketPath)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrDaemonUnavailable.Error()), "socket", socketPath)
	}
	return client, nil
}

// IsRunning reports whether the daemon for cfg answers a ping.
func (c *Connector) IsRunning(ctx context.Context, cfg *domain.Config) bool {
	client, err := c.Dial(ctx, cfg)
	if err != nil {
		return false
	}
	_ = client.Close()
	return true
}

// Spawn starts a detached daemon for cfg and waits until it answers.
func (c *Connector) Spawn(ctx context.Context, cfg *domain.Config) error {
	logPath := c.LogPath(cfg)
	if err := os.MkdirAll(filepath.Dir(logPath), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create daemon directory")
	}

	//nolint:gosec // G304: logPath is derived from the runtime dir and a hash
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, domain.PrivateFilePerm)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open daemon log"), "path", logPath)
	}

	args := []string{"daemon", "serve"}
	if cfg.SourcePath != "" {
		args = append(args, "--config", cfg.SourcePath)
	}

	//nolint:gosec // G204: executablePath is our own binary, args are fixed
	cmd := exec.Command(c.executablePath, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrDaemonSpawnFailed.Error()), "executable", c.executablePath)
	}

	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
	}()

	return c.waitForStartup(ctx, cfg)
}

func (c *Connector) waitForStartup(ctx context.Context, cfg *domain.Config) error {
	deadline := time.Now().Add(maxPollDuration)
	for time.Now().Before(deadline) {
		if c.IsRunning(ctx, cfg) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return zerr.With(
		zerr.Wrap(zerr.New("daemon did not answer within timeout"), domain.ErrDaemonSpawnFailed.Error()),
		"log", c.LogPath(cfg),
	)
}
