package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			profile_pic TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			text TEXT,
			image TEXT,
			file_url TEXT,
			file_name TEXT,
			file_mime TEXT,
			file_size BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS hidden_contacts (
			owner_id TEXT NOT NULL,
			hidden_user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (owner_id, hidden_user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a user, assigning an ID when unset.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = crypto.NewID()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO users (id, full_name, email, password, profile_pic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.FullName, user.Email, user.Password, user.ProfilePic).Scan(&user.CreatedAt)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, full_name, email, password, profile_pic, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Password,
		&user.ProfilePic,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsersExcept returns every user other than id, in insertion order.
func (s *PostgresStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, email, password, profile_pic, created_at
		FROM users
		WHERE id <> $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.FullName,
			&user.Email,
			&user.Password,
			&user.ProfilePic,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateMessage appends a message; the database assigns its timestamp.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = crypto.NewID()
	}

	fileURL, fileName, fileMime, fileSize := attachmentColumns(msg.File)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, file_url, file_name, file_mime, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, msg.ID, msg.SenderID, msg.ReceiverID, nullString(msg.Text), nullString(msg.Image),
		fileURL, fileName, fileMime, fileSize).Scan(&msg.CreatedAt)
	if err != nil {
		return err
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, receiver_id, text, image, file_url, file_name, file_mime, file_size, created_at
		FROM messages WHERE id = $1
	`, id)
	msg, err := scanPostgresMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListConversation returns the messages exchanged between two users in both
// directions, in insertion order.
func (s *PostgresStore) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, text, image, file_url, file_name, file_mime, file_size, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY seq
	`, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanPostgresMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// DeleteMessage removes a message record.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountMessages returns the total number of stored messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// HideContact records that ownerID removed hiddenUserID from their list.
func (s *PostgresStore) HideContact(ctx context.Context, ownerID, hiddenUserID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hidden_contacts (owner_id, hidden_user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, ownerID, hiddenUserID)
	return err
}

// HiddenContactIDs returns the users ownerID has hidden.
func (s *PostgresStore) HiddenContactIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hidden_user_id FROM hidden_contacts WHERE owner_id = $1
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanPostgresMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var text, image, fileURL, fileName, fileMime *string
	var fileSize *int64
	var createdAt time.Time

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
	msg.CreatedAt = createdAt.UTC()
	return msg, nil
}
