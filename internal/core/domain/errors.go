package domain

import "go.trai.ch/zerr"

var (
	// ErrConfigNotFound is returned when no configuration file can be located.
	ErrConfigNotFound = zerr.New("could not find locus.yaml")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when a parsed configuration fails validation.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrNoRootsConfigured is returned when neither cached nor updated roots are configured.
	ErrNoRootsConfigured = zerr.New("no cached or updated roots configured")

	// ErrUnknownMatcher is returned when the configured matcher name is not recognized.
	ErrUnknownMatcher = zerr.New("unknown matcher, expected 'fuzzy' or 'substring'")

	// ErrHomeDirUnavailable is returned when a path uses ~ but the home directory cannot be determined.
	ErrHomeDirUnavailable = zerr.New("failed to determine home directory")

	// ErrDirReadFailed is recorded when a directory cannot be listed during a walk.
	ErrDirReadFailed = zerr.New("failed to read directory")

	// ErrPathNotUTF8 is recorded when a walked path cannot be framed because it is not valid UTF-8.
	ErrPathNotUTF8 = zerr.New("skipped path that is not valid UTF-8")

	// ErrWalkFailed is returned when a walk stops before its queue is drained.
	ErrWalkFailed = zerr.New("walk failed")

	// ErrEncode is the parent of every framing error raised while encoding.
	ErrEncode = zerr.New("failed to encode record")

	// ErrRecordTooLarge is returned when a path does not fit in a single record.
	ErrRecordTooLarge = zerr.New("record payload exceeds 65535 bytes")

	// ErrRecordNotUTF8 is returned when a path to encode is not valid UTF-8.
	ErrRecordNotUTF8 = zerr.New("record payload is not valid UTF-8")

	// ErrDecode is the parent of every framing error raised while decoding.
	ErrDecode = zerr.New("failed to decode record stream")

	// ErrTruncatedPrefix is returned when fewer than two bytes remain for a length prefix.
	ErrTruncatedPrefix = zerr.New("truncated record length prefix")

	// ErrTruncatedPayload is returned when fewer bytes remain than a length prefix declares.
	ErrTruncatedPayload = zerr.New("truncated record payload")

	// ErrInvalidUTF8 is returned when a decoded payload is not valid UTF-8.
	ErrInvalidUTF8 = zerr.New("record payload is not valid UTF-8")

	// ErrCacheReadFailed is returned when the cache blob cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache")

	// ErrCacheWriteFailed is returned when the cache blob cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache")

	// ErrCacheLockFailed is returned when the cache writer lock cannot be acquired.
	ErrCacheLockFailed = zerr.New("failed to lock cache")

	// ErrCacheCorrupt is returned when a persisted cache blob cannot be decoded.
	ErrCacheCorrupt = zerr.New("cache contents are corrupt")

	// ErrQueryFailed is returned when a query cannot produce a response.
	ErrQueryFailed = zerr.New("query failed")

	// ErrDaemonSpawnFailed is returned when the daemon process cannot be started.
	ErrDaemonSpawnFailed = zerr.New("failed to spawn daemon")

	// ErrDaemonUnavailable is returned when the daemon cannot be reached.
	ErrDaemonUnavailable = zerr.New("daemon is not running")
)
