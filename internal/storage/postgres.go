package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

// PostgresStores implements the storage contracts on Postgres.
type PostgresStores struct {
	db *sql.DB
}

// NewPostgresStores opens a connection pool and verifies connectivity.
func NewPostgresStores(dsn string) (*PostgresStores, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStores{db: db}, nil
}

// NewPostgresStoresFromDB wraps an existing connection pool.
func NewPostgresStoresFromDB(db *sql.DB) *PostgresStores {
	return &PostgresStores{db: db}
}

// DB exposes the underlying pool for related stores.
func (s *PostgresStores) DB() *sql.DB {
	return s.db
}

// Stores returns the Stores view over this instance.
func (s *PostgresStores) Stores() Stores {
	return Stores{
		Messages:  s,
		ToolCalls: s,
		Usage:     s,
		closer:    s.db.Close,
	}
}

// Close releases the underlying connection pool.
func (s *PostgresStores) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the log tables if they do not exist.
func (s *PostgresStores) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_key
			ON conversation_messages (tenant_id, contact_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS outbound_log (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			body TEXT NOT NULL,
			sent_media JSONB,
			failed_media JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tool_call_log (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			arguments TEXT NOT NULL,
			result TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS usage_log (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_tokens BIGINT NOT NULL,
			completion_tokens BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// AppendInbound records a coalesced user turn.
func (s *PostgresStores) AppendInbound(ctx context.Context, key models.ConversationKey, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, tenant_id, contact_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), key.TenantID, key.ContactID, string(models.RoleUser), text, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append inbound message: %w", err)
	}
	return nil
}

// AppendOutbound records the assistant turn and the delivery summary in
// one transaction.
func (s *PostgresStores) AppendOutbound(ctx context.Context, entry OutboundEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	sentJSON, err := json.Marshal(entry.SentMedia)
	if err != nil {
		return fmt.Errorf("failed to encode sent media: %w", err)
	}
	failedJSON, err := json.Marshal(entry.FailedMedia)
	if err != nil {
		return fmt.Errorf("failed to encode failed media: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, tenant_id, contact_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), entry.Key.TenantID, entry.Key.ContactID,
		string(models.RoleAssistant), entry.Text, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append assistant message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbound_log (id, tenant_id, contact_id, channel, body, sent_media, failed_media, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Key.TenantID, entry.Key.ContactID, entry.Channel,
		entry.Text, sentJSON, failedJSON, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append outbound log: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit prior turns, most recent first.
func (s *PostgresStores) Recent(ctx context.Context, key models.ConversationKey, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM conversation_messages
		WHERE tenant_id = $1 AND contact_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		key.TenantID, key.ContactID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = models.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Append records a tool invocation.
func (s *PostgresStores) Append(ctx context.Context, entry ToolCallEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_call_log (id, tenant_id, contact_id, tool, arguments, result, success, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Key.TenantID, entry.Key.ContactID, entry.Tool,
		entry.Arguments, entry.Result, entry.Success,
		entry.Duration.Milliseconds(), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append tool call log: %w", err)
	}
	return nil
}

// Record persists a usage record.
func (s *PostgresStores) Record(ctx context.Context, rec usage.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_log (id, tenant_id, contact_id, provider, model, prompt_tokens, completion_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Key.TenantID, rec.Key.ContactID, rec.Provider, rec.Model,
		rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append usage log: %w", err)
	}
	return nil
}
