package store

import (
	"context"
	"strings"

	"github.com/eldtechnologies/chatterbox/internal/models"
)

// DataStore defines the interface for persistent storage of users, messages
// and hidden-contact edges. PostgresStore, MongoStore and SQLiteStore
// implement it. Single-record lookups return (nil, nil) when absent, and
// DeleteMessage reports whether a record was removed.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	DeleteMessage(ctx context.Context, id string) (bool, error)
	CountMessages(ctx context.Context) (int64, error)

	// Contact visibility
	HideContact(ctx context.Context, ownerID, hiddenUserID string) error
	HiddenContactIDs(ctx context.Context, ownerID string) ([]string, error)
}

// Open selects a DataStore from the database URL: postgres:// and
// postgresql:// use PostgreSQL, mongodb:// and mongodb+srv:// use MongoDB,
// and an empty URL falls back to SQLite at sqlitePath.
func Open(ctx context.Context, databaseURL, mongoDatabase, sqlitePath string) (DataStore, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, "", err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, "", err
		}
		return pg, "postgres", nil
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		mongo, err := NewMongoStore(ctx, databaseURL, mongoDatabase)
		if err != nil {
			return nil, "", err
		}
		return mongo, "mongo", nil
	default:
		lite, err := NewSQLiteStore(ctx, sqlitePath)
		if err != nil {
			return nil, "", err
		}
		return lite, "sqlite", nil
	}
}

// nullString maps empty strings to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// attachmentColumns flattens an attachment into nullable column values.
func attachmentColumns(a *models.Attachment) (url, name, mime *string, size *int64) {
	if a == nil {
		return nil, nil, nil, nil
	}
	sz := a.Size
	return &a.URL, &a.Filename, &a.MimeType, &sz
}

// attachmentFromColumns rebuilds an attachment from nullable columns.
func attachmentFromColumns(url, name, mime *string, size *int64) *models.Attachment {
	if url == nil {
		return nil
	}
	a := &models.Attachment{
		URL:      *url,
		Filename: derefString(name),
		MimeType: derefString(mime),
	}
	if size != nil {
		a.Size = *size
	}
	return a
}
