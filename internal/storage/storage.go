// Package storage isolates where recording bytes live. The recording store
// only talks to a Backend; Dir keeps everything in one flat directory.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrNotExist   = errors.New("storage: object does not exist")
	ErrInvalidKey = errors.New("storage: invalid key")
	ErrExist      = errors.New("storage: object already exists")
)

// Object is the metadata of one stored file.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend is the narrow set of operations the recording store needs.
// Write must not make a partially written object visible to List or Open,
// and must never replace an existing object: it stores r under the first
// key from keys that is free, or fails with ErrExist.
type Backend interface {
	List(ctx context.Context) ([]Object, error)
	Write(ctx context.Context, r io.Reader, keys func() string) (Object, error)
	Open(ctx context.Context, key string) (io.ReadSeekCloser, Object, error)
	Delete(ctx context.Context, key string) error
}

// ValidKey reports whether key names a single visible file: no separators,
// no parent references and no leading dot.
func ValidKey(key string) bool {
	if key == "" || len(key) > 255 {
		return false
	}
	if strings.HasPrefix(key, ".") || strings.Contains(key, "..") {
		return false
	}
	if strings.ContainsAny(key, "/\\\x00") {
		return false
	}
	return true
}
