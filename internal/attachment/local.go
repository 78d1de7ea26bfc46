package attachment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/metrics"
	"github.com/eldtechnologies/chatterbox/internal/models"
)

// LocalStore writes attachments into a directory served under UploadsPath.
// Concurrent writers are safe because every file gets a unique name.
type LocalStore struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
}

// NewLocalStore creates a local store. The directory is created lazily on
// first write.
func NewLocalStore(dir, baseURL string, logger zerolog.Logger) *LocalStore {
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "attachment.local").Logger(),
	}
}

// Dir returns the directory attachments are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Mode returns "local".
func (s *LocalStore) Mode() string {
	return "local"
}

// Put writes blob to disk and returns an attachment whose URL is rooted at
// the configured base URL, or at origin when none is configured.
func (s *LocalStore) Put(ctx context.Context, origin string, blob Blob) (*models.Attachment, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	name := StorageName(blob.MimeType)
	if err := os.WriteFile(filepath.Join(s.dir, name), blob.Data, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	base := s.baseURL
	if base == "" {
		base = strings.TrimRight(origin, "/")
	}

	filename := blob.Filename
	if filename == "" {
		filename = name
	}

	metrics.AttachmentsStored.WithLabelValues("local").Inc()
	s.logger.Debug().Str("file", name).Int64("size", blob.Size).Msg("attachment written")

	return &models.Attachment{
		URL:      base + UploadsPath + name,
		Filename: filename,
		MimeType: blob.MimeType,
		Size:     blob.Size,
	}, nil
}

// Release deletes the file behind a URL whose path is under UploadsPath.
// URLs outside UploadsPath and already-missing files are ignored.
func (s *LocalStore) Release(ctx context.Context, rawURL string) error {
	name, ok := LocalFileName(rawURL)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// LocalFileName extracts the stored file name from a local attachment URL.
func LocalFileName(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasPrefix(u.Path, UploadsPath) {
		return "", false
	}
	name := strings.TrimPrefix(u.Path, UploadsPath)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}
