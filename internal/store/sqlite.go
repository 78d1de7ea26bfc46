package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		profile_pic TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		text TEXT,
		image TEXT,
		file_url TEXT,
		file_name TEXT,
		file_mime TEXT,
		file_size INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hidden_contacts (
		owner_id TEXT NOT NULL,
		hidden_user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (owner_id, hidden_user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a user, assigning an ID and timestamp when unset.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = crypto.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, password, profile_pic, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.FullName, user.Email, user.Password, user.ProfilePic, user.CreatedAt.UnixMilli())
	return err
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password, profile_pic, created_at
		FROM users WHERE id = ?
	`, id).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Password,
		&user.ProfilePic,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return user, nil
}

// ListUsersExcept returns every user other than id, in insertion order.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, password, profile_pic, created_at
		FROM users
		WHERE id != ?
		ORDER BY rowid
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		var createdAt int64
		if err := rows.Scan(
			&user.ID,
			&user.FullName,
			&user.Email,
			&user.Password,
			&user.ProfilePic,
			&createdAt,
		); err != nil {
			return nil, err
		}
		user.CreatedAt = time.UnixMilli(createdAt).UTC()
		users = append(users, user)
	}

	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateMessage appends a message, assigning its ID and creation time.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = crypto.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	fileURL, fileName, fileMime, fileSize := attachmentColumns(msg.File)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, file_url, file_name, file_mime, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.ReceiverID, nullString(msg.Text), nullString(msg.Image),
		fileURL, fileName, fileMime, fileSize, msg.CreatedAt.UnixMilli())
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, text, image, file_url, file_name, file_mime, file_size, created_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListConversation returns the messages exchanged between two users in both
// directions, in insertion order.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, image, file_url, file_name, file_mime, file_size, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY rowid
	`, userA, userB, userB, userA)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// DeleteMessage removes a message record.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// HideContact records that ownerID removed hiddenUserID from their list.
func (s *SQLiteStore) HideContact(ctx context.Context, ownerID, hiddenUserID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO hidden_contacts (owner_id, hidden_user_id, created_at)
		VALUES (?, ?, ?)
	`, ownerID, hiddenUserID, time.Now().UnixMilli())
	return err
}

// HiddenContactIDs returns the users ownerID has hidden.
func (s *SQLiteStore) HiddenContactIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hidden_user_id FROM hidden_contacts WHERE owner_id = ?
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var text, image, fileURL, fileName, fileMime *string
	var fileSize *int64
	var createdAt int64

	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&text,
		&image,
		&fileURL,
		&fileName,
		&fileMime,
		&fileSize,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Text = derefString(text)
	msg.Image = derefString(image)
	msg.File = attachmentFromColumns(fileURL, fileName, fileMime, fileSize)
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()
	return msg, nil
}
