// Package attachment stores message attachments either in remote object
// storage or in a local uploads directory. The mode is chosen once at
// startup; callers only see the Store interface.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
)

// UploadsPath is the URL prefix under which local attachments are served.
const UploadsPath = "/uploads/"

var (
	ErrInvalidAttachment = errors.New("invalid attachment")
	ErrStorage           = errors.New("attachment storage failed")
)

// Source is one of the two accepted attachment encodings: Multipart or
// DataURL.
type Source interface {
	source()
}

// Multipart is a raw file part from a multipart form.
type Multipart struct {
	Data     []byte
	MimeType string
	Filename string
}

// DataURL is a legacy base64 image of the form data:image/<subtype>;base64,<payload>.
type DataURL string

func (Multipart) source() {}
func (DataURL) source()   {}

// Blob is a decoded attachment ready to be stored.
type Blob struct {
	Data     []byte
	MimeType string
	Filename string // Empty when the source carried no name
	Size     int64
}

// Resolve decodes a Source into a Blob.
func Resolve(src Source) (Blob, error) {
	switch s := src.(type) {
	case Multipart:
		mime := s.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		return Blob{Data: s.Data, MimeType: mime, Filename: s.Filename, Size: int64(len(s.Data))}, nil
	case DataURL:
		mime, data, err := ParseDataURL(string(s))
		if err != nil {
			return Blob{}, err
		}
		return Blob{Data: data, MimeType: mime, Size: int64(len(data))}, nil
	default:
		return Blob{}, fmt.Errorf("%w: unsupported source %T", ErrInvalidAttachment, src)
	}
}

// Store persists attachment bytes and returns a retrieval URL.
type Store interface {
	// Put stores blob. origin is the scheme://host of the current request,
	// used when a local store has no configured base URL.
	Put(ctx context.Context, origin string, blob Blob) (*models.Attachment, error)
	// Release removes the stored object behind url when the store owns it.
	Release(ctx context.Context, url string) error
	// Mode returns "local" or "remote".
	Mode() string
}

// Mode selects the storage strategy.
type Mode interface {
	mode()
}

// RemoteMode uploads to Cloudinary with the given credentials.
type RemoteMode struct {
	CloudName string
	APIKey    string
	APISecret string
}

// LocalMode writes into Dir; BaseURL, when set, replaces the request origin
// in generated URLs.
type LocalMode struct {
	Dir     string
	BaseURL string
}

func (RemoteMode) mode() {}
func (LocalMode) mode()  {}

// ResolveMode picks RemoteMode when all three credentials are present and
// LocalMode otherwise.
func ResolveMode(cloudName, apiKey, apiSecret, dir, baseURL string) Mode {
	if cloudName != "" && apiKey != "" && apiSecret != "" {
		return RemoteMode{CloudName: cloudName, APIKey: apiKey, APISecret: apiSecret}
	}
	return LocalMode{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

// New builds the Store for mode.
func New(mode Mode, logger zerolog.Logger) (Store, error) {
	switch m := mode.(type) {
	case RemoteMode:
		up, err := NewCloudinaryUploader(m.CloudName, m.APIKey, m.APISecret)
		if err != nil {
			return nil, err
		}
		return NewRemoteStore(up, logger), nil
	case LocalMode:
		return NewLocalStore(m.Dir, m.BaseURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage mode %T", mode)
	}
}

// StorageName generates a collision-resistant file name:
// msg_<unix millis>_<random>.<ext>.
func StorageName(mimeType string) string {
	return fmt.Sprintf("msg_%d_%s.%s", time.Now().UnixMilli(), crypto.RandomSuffix(), Extension(mimeType))
}

// Extension derives a file extension from a MIME type's subtype, dropping
// any "+suffix" (image/svg+xml -> svg). It returns "bin" when there is no
// usable subtype.
func Extension(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return "bin"
	}
	sub, _, _ = strings.Cut(sub, ";")
	sub, _, _ = strings.Cut(sub, "+")
	sub = strings.ToLower(strings.TrimSpace(sub))
	if sub == "" {
		return "bin"
	}
	return sub
}

// IsImage reports whether mimeType is an image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
