// Package config provides the configuration loader for locus.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger

	fs             afero.Fs
	workingDir     func() (string, error)
	homeDir        func() (string, error)
	userConfigPath func() string
}

// Option configures a Loader.
type Option func(*Loader)

// WithWorkingDir sets the directory discovery starts from.
func WithWorkingDir(dir string) Option {
	return func(l *Loader) {
		l.workingDir = func() (string, error) { return dir, nil }
	}
}

// WithHomeDir sets the directory "~" expands to.
func WithHomeDir(dir string) Option {
	return func(l *Loader) {
		l.homeDir = func() (string, error) { return dir, nil }
	}
}

// WithUserConfigPath sets the per-user fallback configuration file.
func WithUserConfigPath(path string) Option {
	return func(l *Loader) {
		l.userConfigPath = func() string { return path }
	}
}

// NewLoader creates a new Loader reading through fsys.
func NewLoader(logger ports.Logger, fsys afero.Fs, opts ...Option) *Loader {
	l := &Loader{
		Logger:         logger,
		fs:             fsys,
		workingDir:     os.Getwd,
		homeDir:        os.UserHomeDir,
		userConfigPath: domain.DefaultConfigPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration at path, or discovers it when path is empty.
//
// Discovery looks for locus.yaml in the working directory and each of its
// parents, then falls back to the per-user configuration file.
func (l *Loader) Load(path string) (*domain.Config, error) {
	configPath, err := l.locate(path)
	if err != nil {
		return nil, err
	}

	var file Locusfile
	if err := l.readAndUnmarshalYAML(configPath, &file); err != nil {
		return nil, err
	}

	cfg, err := l.resolve(configPath, &file)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) locate(path string) (string, error) {
	if path != "" {
		expanded, err := l.expandHome(path)
		if err != nil {
			return "", err
		}
		abs := filepath.Clean(expanded)
		if !filepath.IsAbs(abs) {
			cwd, err := l.workingDir()
			if err != nil {
				return "", zerr.With(zerr.Wrap(err, domain.ErrConfigNotFound.Error()), "path", path)
			}
			abs = filepath.Join(cwd, abs)
		}
		if !l.exists(abs) {
			return "", zerr.With(domain.ErrConfigNotFound, "path", abs)
		}
		return abs, nil
	}

	cwd, err := l.workingDir()
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrConfigNotFound.Error())
	}

	currentDir := filepath.Clean(cwd)
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if l.exists(candidate) {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	if userPath := l.userConfigPath(); userPath != "" && l.exists(userPath) {
		return userPath, nil
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func (l *Loader) exists(path string) bool {
	info, err := l.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (l *Loader) readAndUnmarshalYAML(path string, out *Locusfile) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}
	return nil
}

func (l *Loader) resolve(configPath string, file *Locusfile) (*domain.Config, error) {
	baseDir := filepath.Dir(configPath)
	cfg := &domain.Config{
		SourcePath: configPath,
		Matcher:    file.Matcher,
	}

	var err error
	if cfg.CachedRoots, err = l.resolvePaths(baseDir, file.Cached); err != nil {
		return nil, err
	}
	if cfg.UpdatedRoots, err = l.resolvePaths(baseDir, file.Updated); err != nil {
		return nil, err
	}
	if cfg.IgnorePaths, err = l.resolveIgnores(baseDir, file.Ignore); err != nil {
		return nil, err
	}
	if cfg.BundleSuffixes, err = normalizeSuffixes(file.Bundles); err != nil {
		return nil, zerr.With(err, "config", configPath)
	}

	if cfg.Matcher == "" {
		cfg.Matcher = domain.MatcherFuzzy
	}

	if file.Cache != "" {
		if cfg.CachePath, err = l.resolvePath(baseDir, file.Cache); err != nil {
			return nil, err
		}
	} else {
		cfg.CachePath = domain.DefaultCachePath(cfg.Fingerprint())
	}

	return cfg, nil
}

func (l *Loader) resolvePaths(baseDir string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		resolved, err := l.resolvePath(baseDir, p)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// resolveIgnores resolves each entry and expands glob patterns against the
// file system. Duplicates are dropped, first occurrence wins.
func (l *Loader) resolveIgnores(baseDir string, patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		resolved, err := l.resolvePath(baseDir, pattern)
		if err != nil {
			return nil, err
		}
		if !hasMeta(resolved) {
			add(resolved)
			continue
		}

		matches, err := afero.Glob(l.fs, resolved)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigInvalid.Error()), "pattern", pattern)
		}
		if len(matches) == 0 {
			l.Logger.Warn("ignore pattern matched nothing: " + pattern)
		}
		for _, m := range matches {
			add(filepath.Clean(m))
		}
	}
	return out, nil
}

func (l *Loader) resolvePath(baseDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", zerr.With(domain.ErrConfigInvalid, "path", p)
	}
	expanded, err := l.expandHome(p)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(baseDir, expanded)
	}
	return filepath.Clean(expanded), nil
}

// expandHome replaces a leading "~" with the home directory.
// Other users' homes ("~name") are not expanded.
func (l *Loader) expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := l.homeDir()
	if err != nil || home == "" {
		return "", zerr.With(zerr.Wrap(orEmpty(err), domain.ErrHomeDirUnavailable.Error()), "path", p)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func normalizeSuffixes(suffixes []string) ([]string, error) {
	if suffixes == nil {
		return append([]string(nil), domain.DefaultBundleSuffixes...), nil
	}
	out := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.TrimSpace(s)
		if s == "" || s == "." || strings.ContainsRune(s, filepath.Separator) {
			return nil, zerr.With(domain.ErrConfigInvalid, "bundle_suffix", s)
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		out = append(out, s)
	}
	return out, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

func orEmpty(err error) error {
	if err != nil {
		return err
	}
	return errors.New("home directory is empty")
}
