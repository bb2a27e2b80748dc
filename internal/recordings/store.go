// Package recordings owns the lifecycle of captured media: naming uploads,
// listing them newest-first, opening them for playback and deleting them.
package recordings

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mossy-p/livecast/internal/models"
	"github.com/mossy-p/livecast/internal/storage"
)

type Options struct {
	// Ext is the extension given to every upload unless DeriveExt applies.
	Ext string
	// Extensions lists the recognized media extensions. Only these are
	// listed, served and deleted.
	Extensions []string
	// DeriveExt keeps the uploaded file's extension when it is recognized.
	DeriveExt bool
	Now       func() time.Time
}

// Upload is one incoming recording.
type Upload struct {
	Title    string
	Filename string
	Body     io.Reader
}

// Media is an opened recording. Content must be closed by the caller.
type Media struct {
	models.Recording
	ModTime time.Time
	Content io.ReadSeekCloser
}

type Store struct {
	backend    storage.Backend
	clock      *Clock
	ext        string
	extensions map[string]bool
	deriveExt  bool
	log        *slog.Logger
}

func NewStore(backend storage.Backend, opts Options, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	ext := normalizeExt(opts.Ext)
	if ext == "" {
		ext = "webm"
	}
	extensions := map[string]bool{ext: true}
	for _, e := range opts.Extensions {
		if e = normalizeExt(e); e != "" {
			extensions[e] = true
		}
	}
	return &Store{
		backend:    backend,
		clock:      NewClock(opts.Now),
		ext:        ext,
		extensions: extensions,
		deriveExt:  opts.DeriveExt,
		log:        log.With("component", "recordings"),
	}
}

// Save stores an upload under a freshly generated name. An empty body is
// rejected before anything is written.
func (s *Store) Save(ctx context.Context, up Upload) (models.Recording, error) {
	if up.Body == nil {
		return models.Recording{}, ErrEmptyUpload
	}
	body := bufio.NewReader(up.Body)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Recording{}, ErrEmptyUpload
		}
		return models.Recording{}, &StorageError{Op: "read upload", Err: err}
	}

	title := SanitizeTitle(up.Title)
	ext := s.uploadExt(up.Filename)
	var name string
	next := func() string {
		name = FileName(title, s.clock.Next(), ext)
		return name
	}

	obj, err := s.backend.Write(ctx, body, next)
	if err != nil {
		s.log.Error("Failed to store recording", "name", name, "error", err)
		return models.Recording{}, &StorageError{Op: "write", Name: name, Err: err}
	}

	rec := s.recording(obj)
	s.log.Info("Recording stored", "name", rec.Name, "size", rec.Size)
	return rec, nil
}

// List returns every recognized recording, newest first. It reads the
// backend on each call.
func (s *Store) List(ctx context.Context) ([]models.Recording, error) {
	objects, err := s.backend.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}

	recs := make([]models.Recording, 0, len(objects))
	for _, obj := range objects {
		if !s.recognized(obj.Key) {
			continue
		}
		recs = append(recs, s.recording(obj))
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].Name > recs[j].Name
	})
	return recs, nil
}

// Open returns the recording's content for streaming.
func (s *Store) Open(ctx context.Context, name string) (*Media, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}

	rc, obj, err := s.backend.Open(ctx, name)
	if err != nil {
		return nil, s.mapErr("open", name, err)
	}
	return &Media{
		Recording: s.recording(obj),
		ModTime:   obj.ModTime,
		Content:   rc,
	}, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.checkName(name); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, name); err != nil {
		return s.mapErr("delete", name, err)
	}
	s.log.Info("Recording deleted", "name", name)
	return nil
}

func (s *Store) checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	if !storage.ValidKey(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !s.recognized(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

func (s *Store) mapErr(op, name string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	case errors.Is(err, storage.ErrInvalidKey):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	default:
		return &StorageError{Op: op, Name: name, Err: err}
	}
}

func (s *Store) uploadExt(filename string) string {
	if !s.deriveExt {
		return s.ext
	}
	if ext := normalizeExt(filepath.Ext(filename)); s.extensions[ext] {
		return ext
	}
	return s.ext
}

func (s *Store) recognized(name string) bool {
	return s.extensions[normalizeExt(filepath.Ext(name))]
}

func (s *Store) recording(obj storage.Object) models.Recording {
	title, createdAt, ext, ok := ParseFileName(obj.Key)
	if !ok {
		createdAt = obj.ModTime
	}
	return models.Recording{
		Name:      obj.Key,
		Title:     title,
		Ext:       ext,
		CreatedAt: createdAt,
		Size:      obj.Size,
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
