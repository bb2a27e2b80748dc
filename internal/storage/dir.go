package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	partialSuffix = ".part"

	// maxCommitAttempts bounds how many taken names Write skips before
	// giving up.
	maxCommitAttempts = 16
)

// Dir is a Backend over a single flat directory.
type Dir struct {
	root string
}

// NewDir creates root if needed and checks that files can be written to it.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: directory path is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory %s: %w", abs, err)
	}

	probe, err := os.CreateTemp(abs, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("storage: directory %s is not writable: %w", abs, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	d := &Dir{root: abs}
	if err := d.removePartials(); err != nil {
		return nil, err
	}
	return d, nil
}

// removePartials deletes temp files left behind by a crash mid-upload.
func (d *Dir) removePartials() error {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return fmt.Errorf("storage: read directory: %w", err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsPartial(entry.Name()) {
			if err := os.Remove(filepath.Join(d.root, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("storage: remove stale %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	p := filepath.Join(d.root, key)
	if filepath.Dir(p) != d.root {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return p, nil
}

func (d *Dir) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("storage: read directory: %w", err)
	}

	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || !ValidKey(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: stat %s: %w", entry.Name(), err)
		}
		objects = append(objects, Object{
			Key:     entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return objects, nil
}

// Write streams r into a hidden temp file, syncs it and links it into place
// under the first name from keys that is not already taken. Existing objects
// are never replaced. On any failure the temp file is removed.
func (d *Dir) Write(ctx context.Context, r io.Reader, keys func() string) (obj Object, err error) {
	tmpPath := filepath.Join(d.root, "."+uuid.New().String()+partialSuffix)
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("storage: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
		}
		os.Remove(tmpPath)
	}()

	if _, err = io.Copy(f, &contextReader{ctx: ctx, r: r}); err != nil {
		return Object{}, fmt.Errorf("storage: write upload: %w", err)
	}
	if err = f.Sync(); err != nil {
		return Object{}, fmt.Errorf("storage: sync upload: %w", err)
	}
	if err = f.Close(); err != nil {
		return Object{}, fmt.Errorf("storage: close upload: %w", err)
	}

	return d.commit(tmpPath, keys)
}

// commit hard-links tmpPath to a free key. The link fails instead of
// replacing an existing file, so a taken name moves on to the next key.
func (d *Dir) commit(tmpPath string, keys func() string) (Object, error) {
	var key string
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		key = keys()
		dst, err := d.path(key)
		if err != nil {
			return Object{}, err
		}

		if err := os.Link(tmpPath, dst); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return Object{}, fmt.Errorf("storage: commit %s: %w", key, err)
		}

		info, err := os.Stat(dst)
		if err != nil {
			return Object{}, fmt.Errorf("storage: stat %s: %w", key, err)
		}
		return Object{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
	}
	return Object{}, fmt.Errorf("%w: %s", ErrExist, key)
}

func (d *Dir) Open(ctx context.Context, key string) (io.ReadSeekCloser, Object, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Object{}, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return nil, Object{}, fmt.Errorf("storage: open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, Object{}, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	return f, Object{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Lstat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return fmt.Errorf("storage: stat %s: %w", key, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

// IsPartial reports whether name is an in-flight upload left by Write.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, partialSuffix)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
