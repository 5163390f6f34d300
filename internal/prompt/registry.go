package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

//go:embed defaults/*.md
var defaults embed.FS

const (
	ext              = ".md"
	defaultCacheSize = 64
)

// ErrNotFound is returned when no file backs the requested prompt name.
var ErrNotFound = errors.New("prompt not found")

// Registry maps role names to instruction text. Prompts are looked up in an
// optional override directory first and then in the embedded defaults.
//
// A name may carry a version label, "personalizer@v2", which resolves to the
// file "personalizer.v2.md".
type Registry struct {
	dir    string
	embed  fs.FS
	cache  *lru.Cache[string, string]
	logger *slog.Logger
}

// Option customizes a Registry
type Option func(*Registry)

// WithCacheSize bounds the number of cached prompt texts
func WithCacheSize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.cache, _ = lru.New[string, string](size)
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With("component", "prompt_registry")
	}
}

// WithFS replaces the embedded defaults, mostly for tests.
func WithFS(fsys fs.FS) Option {
	return func(r *Registry) {
		r.embed = fsys
	}
}

// New creates a registry. An empty dir uses only the embedded defaults.
func New(dir string, opts ...Option) *Registry {
	sub, _ := fs.Sub(defaults, "defaults")
	cache, _ := lru.New[string, string](defaultCacheSize)

	r := &Registry{
		dir:    dir,
		embed:  sub,
		cache:  cache,
		logger: slog.Default().With("component", "prompt_registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the instruction text for name.
func (r *Registry) Get(name string) (string, error) {
	if text, ok := r.cache.Get(name); ok {
		return text, nil
	}

	file, err := fileName(name)
	if err != nil {
		return "", err
	}

	text, source, err := r.load(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	r.cache.Add(name, text)
	r.logger.Debug("loaded prompt",
		"name", name,
		"source", source,
		"length", len(text))

	return text, nil
}

func (r *Registry) load(file string) (text, source string, err error) {
	if r.dir != "" {
		data, err := os.ReadFile(filepath.Join(r.dir, file))
		if err == nil {
			return strings.TrimSpace(string(data)), "dir", nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("reading prompt file: %w", err)
		}
	}

	if r.embed != nil {
		data, err := fs.ReadFile(r.embed, file)
		if err == nil {
			return strings.TrimSpace(string(data)), "embedded", nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("reading embedded prompt: %w", err)
		}
	}

	return "", "", ErrNotFound
}

// Names lists every prompt available from the directory and the defaults,
// sorted and without duplicates.
func (r *Registry) Names() ([]string, error) {
	seen := map[string]struct{}{}

	if r.dir != "" {
		entries, err := os.ReadDir(r.dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("listing prompt dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
				seen[nameOf(e.Name())] = struct{}{}
			}
		}
	}

	if r.embed != nil {
		matches, err := fs.Glob(r.embed, "*"+ext)
		if err != nil {
			return nil, fmt.Errorf("listing embedded prompts: %w", err)
		}
		for _, m := range matches {
			seen[nameOf(m)] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Preload loads multiple prompts into cache
func (r *Registry) Preload(names []string) error {
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			return fmt.Errorf("preloading %s: %w", name, err)
		}
	}
	return nil
}

// Clear removes all cached prompts
func (r *Registry) Clear() {
	r.cache.Purge()
}

// Cached returns the number of prompts held in the cache
func (r *Registry) Cached() int {
	return r.cache.Len()
}

func fileName(name string) (string, error) {
	base, version, _ := strings.Cut(name, "@")
	if base == "" || strings.ContainsAny(base, `/\.`) || strings.ContainsAny(version, `/\`) {
		return "", fmt.Errorf("invalid prompt name %q", name)
	}
	if version != "" {
		return base + "." + version + ext, nil
	}
	return base + ext, nil
}

// nameOf converts "critic.v2.md" back into "critic@v2".
func nameOf(file string) string {
	base := strings.TrimSuffix(path.Base(file), ext)
	if b, v, ok := strings.Cut(base, "."); ok {
		return b + "@" + v
	}
	return base
}
