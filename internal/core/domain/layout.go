package domain

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	// AppName is the directory name used below user cache, config and runtime dirs.
	AppName = "locus"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "locus.yaml"

	// CacheFilePrefix prefixes every cache blob file name.
	CacheFilePrefix = "index-"

	// CacheFileExt is the extension of cache blob files.
	CacheFileExt = ".bin"

	// LockFileExt is appended to the cache path to name the writer lock.
	LockFileExt = ".lock"

	// DaemonSocketExt is the extension of daemon unix sockets.
	DaemonSocketExt = ".sock"

	// DaemonLogExt is the extension of daemon log files.
	DaemonLogExt = ".log"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600

	// SocketPerm restricts the daemon socket to its owner.
	SocketPerm = 0o600
)

// DefaultCacheDir returns the directory holding cache blobs.
// It falls back to the system temp dir when no user cache dir is available.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, AppName)
}

// DefaultCachePath returns the cache blob path for a configuration fingerprint.
func DefaultCachePath(fingerprint string) string {
	return filepath.Join(DefaultCacheDir(), CacheFilePrefix+fingerprint+CacheFileExt)
}

// DefaultConfigPath returns the per-user configuration file path, or "" if unknown.
func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, AppName, ConfigFileName)
}

// DefaultRuntimeDir returns the per-user directory for daemon sockets and logs.
// Unix socket paths are length limited, so this stays below the temp dir.
func DefaultRuntimeDir() string {
	return filepath.Join(os.TempDir(), AppName+"-"+strconv.Itoa(os.Getuid()))
}

// DefaultDaemonSocketPath returns the socket path of the daemon serving a configuration.
func DefaultDaemonSocketPath(fingerprint string) string {
	return filepath.Join(DefaultRuntimeDir(), fingerprint+DaemonSocketExt)
}

// DefaultDaemonLogPath returns the log path of the daemon serving a configuration.
func DefaultDaemonLogPath(fingerprint string) string {
	return filepath.Join(DefaultRuntimeDir(), fingerprint+DaemonLogExt)
}
