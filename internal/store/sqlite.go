package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

// SQLiteStore implements Store on SQLite. A single connection serializes
// writes, which makes each PatchMetadata read-modify-write atomic without
// an explicit version token.
type SQLiteStore struct {
	db     *sql.DB
	pub    Publisher
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, pub Publisher, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, pub: pub, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
		id                  TEXT NOT NULL UNIQUE,
		conversation_id     TEXT NOT NULL,
		author_role         TEXT NOT NULL,
		kind                TEXT NOT NULL,
		payload             TEXT,
		author_display_name TEXT,
		created_at          DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, created_at, seq);

	CREATE TABLE IF NOT EXISTS conversation_metadata (
		conversation_id       TEXT PRIMARY KEY,
		last_message_preview  TEXT NOT NULL DEFAULT '',
		last_message_kind     TEXT NOT NULL DEFAULT 'text',
		last_activity_at      DATETIME,
		unread_by_staff       INTEGER NOT NULL DEFAULT 0,
		unread_by_customer    INTEGER NOT NULL DEFAULT 0,
		customer_display_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS presence (
		customer_id TEXT PRIMARY KEY,
		online      INTEGER NOT NULL DEFAULT 0,
		updated_at  DATETIME
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, convID string, msg domain.Message) (domain.Message, error) {
	msg.ConversationID = convID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, author_role, kind, payload, author_display_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, convID, msg.AuthorRole, msg.Kind, msg.Payload, msg.AuthorDisplayName, msg.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	msg.Seq = seq

	if s.pub != nil {
		s.pub.Publish(domain.MessageCreated{ConversationID: convID, Message: msg})
	}
	return msg, nil
}

func (s *SQLiteStore) Messages(ctx context.Context, convID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	// Last N, then reversed to chronological order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, conversation_id, author_role, kind, payload, author_display_name, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at DESC, seq DESC LIMIT ?`, convID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var payload, displayName sql.NullString
		if err := rows.Scan(&m.Seq, &m.ID, &m.ConversationID, &m.AuthorRole, &m.Kind,
			&payload, &displayName, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Payload = payload.String
		m.AuthorDisplayName = displayName.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) Metadata(ctx context.Context, convID string) (*domain.ConversationMetadata, error) {
	var md domain.ConversationMetadata
	var lastActivity sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, last_message_preview, last_message_kind, last_activity_at,
		        unread_by_staff, unread_by_customer, customer_display_name
		 FROM conversation_metadata WHERE conversation_id = ?`, convID,
	).Scan(&md.ConversationID, &md.LastMessagePreview, &md.LastMessageKind, &lastActivity,
		&md.UnreadByStaff, &md.UnreadByCustomer, &md.CustomerDisplayName)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		md.LastActivityAt = lastActivity.Time
	}
	return &md, nil
}

func (s *SQLiteStore) PatchMetadata(ctx context.Context, convID string, patch domain.MetadataPatch) error {
	if patch.IsZero() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("patch metadata: %w", err)
	}
	defer tx.Rollback()

	md := domain.ConversationMetadata{ConversationID: convID, LastMessageKind: domain.KindText}
	var lastActivity sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT last_message_preview, last_message_kind, last_activity_at,
		        unread_by_staff, unread_by_customer, customer_display_name
		 FROM conversation_metadata WHERE conversation_id = ?`, convID,
	).Scan(&md.LastMessagePreview, &md.LastMessageKind, &lastActivity,
		&md.UnreadByStaff, &md.UnreadByCustomer, &md.CustomerDisplayName)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("patch metadata: %w", err)
	}
	if lastActivity.Valid {
		md.LastActivityAt = lastActivity.Time
	}

	applyPatch(&md, patch)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_metadata
		   (conversation_id, last_message_preview, last_message_kind, last_activity_at,
		    unread_by_staff, unread_by_customer, customer_display_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
		   last_message_preview  = excluded.last_message_preview,
		   last_message_kind     = excluded.last_message_kind,
		   last_activity_at      = excluded.last_activity_at,
		   unread_by_staff       = excluded.unread_by_staff,
		   unread_by_customer    = excluded.unread_by_customer,
		   customer_display_name = excluded.customer_display_name`,
		convID, md.LastMessagePreview, md.LastMessageKind, md.LastActivityAt,
		md.UnreadByStaff, md.UnreadByCustomer, md.CustomerDisplayName,
	)
	if err != nil {
		return fmt.Errorf("patch metadata: %w", err)
	}

	return tx.Commit()
}

// applyPatch merges non-nil fields of patch into md. lastActivityAt is kept
// monotone: a patch carrying an earlier timestamp leaves the stored one.
func applyPatch(md *domain.ConversationMetadata, patch domain.MetadataPatch) {
	if patch.LastMessagePreview != nil {
		md.LastMessagePreview = *patch.LastMessagePreview
	}
	if patch.LastMessageKind != nil {
		md.LastMessageKind = *patch.LastMessageKind
	}
	if patch.LastActivityAt != nil && patch.LastActivityAt.After(md.LastActivityAt) {
		md.LastActivityAt = *patch.LastActivityAt
	}
	if patch.UnreadByStaff != nil {
		md.UnreadByStaff = *patch.UnreadByStaff
	}
	if patch.UnreadByCustomer != nil {
		md.UnreadByCustomer = *patch.UnreadByCustomer
	}
	if patch.CustomerDisplayName != nil {
		md.CustomerDisplayName = *patch.CustomerDisplayName
	}
}

func (s *SQLiteStore) ListMetadata(ctx context.Context, limit int) ([]domain.ConversationMetadata, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, last_message_preview, last_message_kind, last_activity_at,
		        unread_by_staff, unread_by_customer, customer_display_name
		 FROM conversation_metadata ORDER BY last_activity_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mds []domain.ConversationMetadata
	for rows.Next() {
		var md domain.ConversationMetadata
		var lastActivity sql.NullTime
		if err := rows.Scan(&md.ConversationID, &md.LastMessagePreview, &md.LastMessageKind,
			&lastActivity, &md.UnreadByStaff, &md.UnreadByCustomer, &md.CustomerDisplayName); err != nil {
			return nil, err
		}
		if lastActivity.Valid {
			md.LastActivityAt = lastActivity.Time
		}
		mds = append(mds, md)
	}
	return mds, rows.Err()
}

func (s *SQLiteStore) AutoResponderEnabled(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, SettingAutoResponder,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) SetAutoResponderEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		SettingAutoResponder, value,
	)
	return err
}

func (s *SQLiteStore) SetPresence(ctx context.Context, customerID string, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presence (customer_id, online, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(customer_id) DO UPDATE SET online = excluded.online, updated_at = excluded.updated_at`,
		customerID, online, time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Presence(ctx context.Context, customerID string) (bool, error) {
	var online bool
	err := s.db.QueryRowContext(ctx,
		`SELECT online FROM presence WHERE customer_id = ?`, customerID,
	).Scan(&online)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return online, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
