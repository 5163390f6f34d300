package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/storyteller/internal/core"
)

// FileSystem stores files under a base directory. Paths are relative and
// may not leave it.
type FileSystem struct {
	baseDir string
}

func NewFileSystem(baseDir string) *FileSystem {
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	return &FileSystem{
		baseDir: filepath.Clean(baseDir),
	}
}

func (f *FileSystem) BaseDir() string { return f.baseDir }

// resolve validates path and returns its location under the base directory.
func (f *FileSystem) resolve(path string) (string, error) {
	cleaned := filepath.Clean(path)

	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: absolute path %q", core.ErrInvalidInput, path)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the base directory", core.ErrInvalidInput, path)
	}

	full := filepath.Join(f.baseDir, cleaned)
	if full != f.baseDir && !strings.HasPrefix(full, f.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the base directory", core.ErrInvalidInput, path)
	}
	return full, nil
}

func (f *FileSystem) Save(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := f.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// journals and env files stay private
	mode := os.FileMode(0o644)
	if strings.HasSuffix(path, ".db") || strings.Contains(path, ".env") {
		mode = 0o600
	}

	if err := os.WriteFile(full, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (f *FileSystem) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// List returns the relative paths matching a glob pattern, in lexical order.
func (f *FileSystem) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := f.resolve(pattern)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", pattern, err)
	}

	var out []string
	for _, m := range matches {
		rel, err := filepath.Rel(f.baseDir, m)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

func (f *FileSystem) Exists(ctx context.Context, path string) bool {
	full, err := f.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (f *FileSystem) Delete(ctx context.Context, path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}
