// Package postgres provides a PostgreSQL implementation of archive.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/pro004/tempmail/archive"
)

// Compile-time check
var _ archive.Store = (*Store)(nil)

// Store implements archive.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL archive with the provided database
// connection. Call Connect() to initialize the schema.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL archive from a standard sql.DB
// connection.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// row is the database representation of an archived message.
type row struct {
	ID              string    `db:"message_id"`
	Address         string    `db:"address"`
	Sender          string    `db:"sender"`
	Recipient       string    `db:"recipient"`
	Subject         string    `db:"subject"`
	Intro           string    `db:"intro"`
	TextContent     string    `db:"text_content"`
	HTMLContent     string    `db:"html_content"`
	AttachmentCount int       `db:"attachment_count"`
	IsRead          bool      `db:"is_read"`
	ReceivedAt      time.Time `db:"received_at"`
}

func (r row) toMessage() archive.Message {
	return archive.Message{
		ID:              r.ID,
		Address:         r.Address,
		From:            r.Sender,
		To:              r.Recipient,
		Subject:         r.Subject,
		Intro:           r.Intro,
		Text:            r.TextContent,
		HTML:            r.HTMLContent,
		AttachmentCount: r.AttachmentCount,
		IsRead:          r.IsRead,
		ReceivedAt:      r.ReceivedAt,
	}
}

// Connect pings the database and initializes the schema.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return archive.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL archive", "table", s.opts.table)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required table and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			message_id VARCHAR(255) NOT NULL,
			address VARCHAR(255) NOT NULL,
			sender VARCHAR(255) NOT NULL DEFAULT '',
			recipient VARCHAR(255) NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			intro TEXT NOT NULL DEFAULT '',
			text_content TEXT NOT NULL DEFAULT '',
			html_content TEXT NOT NULL DEFAULT '',
			attachment_count INTEGER NOT NULL DEFAULT 0,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (address, message_id)
		)
	`, s.opts.table)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_address ON %s(address)`, s.opts.table, s.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_received ON %s(address, received_at DESC)`, s.opts.table, s.opts.table),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns an error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return archive.ErrNotConnected
	}
	return nil
}

// Save stores or updates a message. Content columns only ever grow:
// a summary-only save does not blank out an earlier full fetch.
func (s *Store) Save(ctx context.Context, msg archive.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (message_id, address, sender, recipient, subject, intro,
			text_content, html_content, attachment_count, is_read, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address, message_id) DO UPDATE SET
			sender = EXCLUDED.sender,
			recipient = EXCLUDED.recipient,
			subject = EXCLUDED.subject,
			intro = EXCLUDED.intro,
			text_content = CASE WHEN EXCLUDED.text_content = '' THEN %s.text_content ELSE EXCLUDED.text_content END,
			html_content = CASE WHEN EXCLUDED.html_content = '' THEN %s.html_content ELSE EXCLUDED.html_content END,
			attachment_count = EXCLUDED.attachment_count,
			is_read = %s.is_read OR EXCLUDED.is_read
	`, s.opts.table, s.opts.table, s.opts.table, s.opts.table)

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.Address, msg.From, msg.To, msg.Subject, msg.Intro,
		msg.Text, msg.HTML, msg.AttachmentCount, msg.IsRead, msg.ReceivedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// Get returns one archived message, or archive.ErrNotFound.
func (s *Store) Get(ctx context.Context, address, messageID string) (*archive.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT * FROM %s WHERE address = $1 AND message_id = $2`, s.opts.table)

	var r row
	if err := s.db.GetContext(ctx, &r, query, address, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, archive.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	msg := r.toMessage()
	return &msg, nil
}

// List returns all archived messages for an address, newest first.
func (s *Store) List(ctx context.Context, address string) ([]archive.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT * FROM %s WHERE address = $1 ORDER BY received_at DESC`, s.opts.table)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, address); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]archive.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMessage())
	}
	return out, nil
}

// MarkRead flags a message as read. Missing messages are a no-op.
func (s *Store) MarkRead(ctx context.Context, address, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET is_read = TRUE WHERE address = $1 AND message_id = $2`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, query, address, messageID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Delete removes one message. Missing messages are a no-op.
func (s *Store) Delete(ctx context.Context, address, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE address = $1 AND message_id = $2`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, query, address, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Purge removes every message archived for an address.
func (s *Store) Purge(ctx context.Context, address string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE address = $1`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, query, address); err != nil {
		return fmt.Errorf("purge address: %w", err)
	}
	return nil
}
