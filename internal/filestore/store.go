package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxFileSize is the largest accepted upload, per file.
const DefaultMaxFileSize = 50 << 20

const chunkSize = 8 << 10

var (
	// ErrNotFound is returned for names that do not refer to a stored file.
	ErrNotFound = errors.New("filestore: file not found")

	// ErrTooLarge is returned by Save when the content exceeds the size limit.
	ErrTooLarge = errors.New("filestore: file too large")
)

// FileInfo describes a stored file.
type FileInfo struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store keeps uploaded files flat in one directory.
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates dir if needed and returns a Store rooted at it.
// A non-positive maxSize means DefaultMaxFileSize.
func NewStore(dir string, maxSize int64) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// MaxFileSize returns the per-file size limit in bytes.
func (s *Store) MaxFileSize() int64 {
	return s.maxSize
}

// List returns the stored files ordered by name.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		files = append(files, fileInfo(info))
	}
	return files, nil
}

// Save stores r under "<uuid>_<name>" and returns the stored name. Content
// beyond the size limit removes the partial file and returns ErrTooLarge.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	base, ok := sanitize(name)
	if !ok {
		return "", fmt.Errorf("filestore: invalid file name %q", name)
	}

	stored := uuid.NewString() + "_" + base
	path := filepath.Join(s.dir, stored)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("filestore: create %s: %w", stored, err)
	}

	n, err := io.CopyBuffer(f, io.LimitReader(r, s.maxSize+1), make([]byte, chunkSize))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("filestore: write %s: %w", stored, err)
	case n > s.maxSize:
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %q exceeds %d bytes", ErrTooLarge, base, s.maxSize)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("filestore: write %s: %w", stored, closeErr)
	}
	return stored, nil
}

// Open opens the stored file name for reading.
func (s *Store) Open(name string) (*os.File, FileInfo, error) {
	path, err := s.lookup(name)
	if err != nil {
		return nil, FileInfo{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("filestore: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, FileInfo{}, fmt.Errorf("filestore: stat: %w", err)
	}
	return f, fileInfo(info), nil
}

// Remove deletes the stored file name.
func (s *Store) Remove(name string) error {
	path, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

// lookup maps name to a regular file inside the store directory.
func (s *Store) lookup(name string) (string, error) {
	base, ok := sanitize(name)
	if !ok {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dir, base)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("filestore: stat: %w", err)
	}
	return path, nil
}

// sanitize reduces name to its final path element.
func sanitize(name string) (string, bool) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return "", false
	}
	return base, true
}

func fileInfo(info os.FileInfo) FileInfo {
	return FileInfo{
		Filename:   info.Name(),
		Path:       "/files/" + info.Name(),
		UploadedAt: info.ModTime(),
	}
}
