package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/metrics"
	"github.com/eldtechnologies/chatterbox/internal/models"
)

// Folders used in remote storage.
const (
	ImagesFolder = "chat_images"
	FilesFolder  = "chat_files"
)

// Uploader pushes bytes to an object-storage service and returns the
// canonical URL.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, folder string) (string, error)
}

// CloudinaryUploader implements Uploader on the Cloudinary upload API.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryUploader creates an uploader from the credential triple.
func NewCloudinaryUploader(cloudName, apiKey, apiSecret string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &CloudinaryUploader{cld: cld}, nil
}

// Upload sends r into folder with automatic resource type detection.
func (u *CloudinaryUploader) Upload(ctx context.Context, r io.Reader, folder string) (string, error) {
	resp, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	if resp.SecureURL != "" {
		return resp.SecureURL, nil
	}
	if resp.URL != "" {
		return resp.URL, nil
	}
	return "", errors.New("upload response carried no url")
}

// RemoteStore stores attachments through an Uploader. Objects are never
// deleted remotely.
type RemoteStore struct {
	up     Uploader
	logger zerolog.Logger
}

// NewRemoteStore creates a remote store.
func NewRemoteStore(up Uploader, logger zerolog.Logger) *RemoteStore {
	return &RemoteStore{
		up:     up,
		logger: logger.With().Str("component", "attachment.remote").Logger(),
	}
}

// Mode returns "remote".
func (s *RemoteStore) Mode() string {
	return "remote"
}

// Put uploads blob into the images or files folder depending on its type.
func (s *RemoteStore) Put(ctx context.Context, origin string, blob Blob) (*models.Attachment, error) {
	folder := FilesFolder
	if IsImage(blob.MimeType) {
		folder = ImagesFolder
	}

	url, err := s.up.Upload(ctx, bytes.NewReader(blob.Data), folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	filename := blob.Filename
	if filename == "" {
		filename = StorageName(blob.MimeType)
	}

	metrics.AttachmentsStored.WithLabelValues("remote").Inc()
	s.logger.Debug().Str("folder", folder).Int64("size", blob.Size).Msg("attachment uploaded")

	return &models.Attachment{
		URL:      url,
		Filename: filename,
		MimeType: blob.MimeType,
		Size:     blob.Size,
	}, nil
}

// Release is a no-op: remote objects outlive their messages.
func (s *RemoteStore) Release(ctx context.Context, url string) error {
	return nil
}
