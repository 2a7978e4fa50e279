// Package uploads stores client file uploads on disk and hands back the
// relative URLs the chat turns reference.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/madlen/chat-backend/internal/observability"
)

// DefaultMaxBytes caps a single upload at 10 MB.
const DefaultMaxBytes = 10 << 20

// Store writes uploads under a single directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore creates the uploads directory if needed.
func NewStore(dir string, maxBytes int64, logger zerolog.Logger) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "uploads").Logger(),
		now:      time.Now,
	}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the per-upload size cap.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save writes the upload to disk under a timestamp-prefixed name and returns
// the relative URL it is served from.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name, err := s.diskName(filename)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(path)
		return "", fmt.Errorf("upload exceeds %d byte limit", s.maxBytes)
	}

	observability.RecordUpload(n)
	s.logger.Info().Str("file", name).Int64("bytes", n).Msg("Upload stored")
	return "/uploads/" + name, nil
}

// diskName builds the stored filename. The client-supplied name is reduced
// to its base component so it cannot escape the uploads directory.
func (s *Store) diskName(filename string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "" || base == "." || base == ".." || strings.Contains(base, "\x00") {
		return "", fmt.Errorf("invalid upload filename %q", filename)
	}
	return fmt.Sprintf("%d-%s", s.now().UnixMilli(), base), nil
}
