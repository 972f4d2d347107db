package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirStore keeps built-in sigils in one directory and uploads in another.
// Lookups check the upload directory first.
type DirStore struct {
	defaultDir string
	customDir  string
	opts       Options
	log        *slog.Logger
}

var (
	_ Store   = (*DirStore)(nil)
	_ Sweeper = (*DirStore)(nil)
)

// NewDirStore creates a store over the two directories. The custom directory
// is created on first upload.
func NewDirStore(defaultDir, customDir string, opts Options, log *slog.Logger) *DirStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &DirStore{
		defaultDir: defaultDir,
		customDir:  customDir,
		opts:       opts.withDefaults(),
		log:        log,
	}
}

// ListNames returns the image files in the default directory.
func (s *DirStore) ListNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.defaultDir)
	if err != nil {
		return nil, fmt.Errorf("error listing sigils: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Fetch reads the named sigil from the custom directory, then the default one.
func (s *DirStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validName(name) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	for _, dir := range []string{s.customDir, s.defaultDir} {
		if dir == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading sigil %q: %w", name, err)
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Put writes an upload into the custom directory.
func (s *DirStore) Put(ctx context.Context, originalName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.opts.check(data); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.customDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", s.customDir, err)
	}

	name := CustomName(s.opts.Now(), originalName)
	if err := os.WriteFile(filepath.Join(s.customDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("error uploading sigil: %w", err)
	}
	s.log.Info("stored custom sigil", "name", name, "bytes", len(data))
	return name, nil
}

// Sweep deletes uploads older than the TTL and returns how many it removed.
func (s *DirStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.customDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error listing custom sigils: %w", err)
	}

	cutoff := now.Add(-s.opts.TTL)
	removed := 0
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !strings.HasPrefix(e.Name(), CustomPrefix) {
			continue
		}
		uploaded, ok := UploadTime(e.Name())
		if !ok {
			info, err := e.Info()
			if err != nil {
				continue
			}
			uploaded = info.ModTime()
		}
		if !uploaded.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.customDir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
		s.log.Debug("removed expired sigil", "name", e.Name())
	}
	return removed, errors.Join(errs...)
}
