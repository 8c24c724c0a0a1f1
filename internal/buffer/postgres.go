package buffer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/efficore/agentcore/pkg/models"
)

// PostgresStore persists buffers in a message_buffers table. The claim
// lock is a single conditional UPDATE on the processing_until column;
// RowsAffected distinguishes a won claim from a lost one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the buffer table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS message_buffers (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			fragments JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			processing_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, contact_id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure buffer schema: %w", err)
	}
	return nil
}

// Append upserts the buffer row for key in a single statement, so
// concurrent appends for the same key never race a read-then-write.
func (s *PostgresStore) Append(ctx context.Context, key models.ConversationKey, text string, quiet time.Duration) (int, error) {
	now := time.Now()
	frag, err := json.Marshal([]Fragment{{Text: text, ReceivedAt: now}})
	if err != nil {
		return 0, fmt.Errorf("failed to encode fragment: %w", err)
	}

	var count int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO message_buffers (id, tenant_id, contact_id, fragments, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, contact_id) DO UPDATE
		SET fragments = message_buffers.fragments || EXCLUDED.fragments,
		    expires_at = EXCLUDED.expires_at
		RETURNING jsonb_array_length(fragments)`,
		uuid.NewString(), key.TenantID, key.ContactID, frag, now.Add(quiet), now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to append fragment: %w", err)
	}
	return count, nil
}

// Open returns the buffer row for key.
func (s *PostgresStore) Open(ctx context.Context, key models.ConversationKey) (*Buffer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, contact_id, fragments, expires_at, processing_until, created_at
		FROM message_buffers
		WHERE tenant_id = $1 AND contact_id = $2`,
		key.TenantID, key.ContactID)
	return scanBuffer(row)
}

// Get returns the buffer row with the given id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Buffer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, contact_id, fragments, expires_at, processing_until, created_at
		FROM message_buffers
		WHERE id = $1`, id)
	return scanBuffer(row)
}

// Due returns expired buffers whose lease is absent or stale.
func (s *PostgresStore) Due(ctx context.Context, now time.Time) ([]Buffer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, contact_id, fragments, expires_at, processing_until, created_at
		FROM message_buffers
		WHERE expires_at <= $1
		  AND (processing_until IS NULL OR processing_until < $1)`,
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due buffers: %w", err)
	}
	defer rows.Close()

	var due []Buffer
	for rows.Next() {
		buf, err := scanBufferRows(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *buf)
	}
	return due, rows.Err()
}

// TryClaim sets the lease in one conditional update. The predicate and
// the write are a single statement, so two workers racing on the same
// buffer see exactly one affected row between them. The expires_at
// check keeps a buffer that gained a fresh fragment after the due scan
// from draining before its quiet period ends.
func (s *PostgresStore) TryClaim(ctx context.Context, id string, lease time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_buffers
		SET processing_until = $2
		WHERE id = $1
		  AND expires_at <= $3
		  AND (processing_until IS NULL OR processing_until < $3)`,
		id, now.Add(lease), now)
	if err != nil {
		return false, fmt.Errorf("failed to claim buffer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected == 1, nil
}

// Delete removes the buffer row.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM message_buffers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete buffer: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuffer(row *sql.Row) (*Buffer, error) {
	buf, err := scanBufferRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBufferNotFound
	}
	return buf, err
}

func scanBufferRows(row rowScanner) (*Buffer, error) {
	var buf Buffer
	var fragments []byte
	var processingUntil sql.NullTime

	err := row.Scan(&buf.ID, &buf.Key.TenantID, &buf.Key.ContactID,
		&fragments, &buf.ExpiresAt, &processingUntil, &buf.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fragments, &buf.Fragments); err != nil {
		return nil, fmt.Errorf("failed to decode fragments: %w", err)
	}
	if processingUntil.Valid {
		t := processingUntil.Time
		buf.ProcessingUntil = &t
	}
	return &buf, nil
}
