// Package postgres provides the Postgres-backed conversation store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siteiq/siteiq/internal/insight"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements insight.ConversationStore on a conversations table:
//
//	CREATE TABLE conversations (
//	    id           TEXT PRIMARY KEY,
//	    owner_id     TEXT NOT NULL,
//	    title        TEXT NOT NULL,
//	    turns        JSONB NOT NULL,
//	    last_updated TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX conversations_owner_updated
//	    ON conversations (owner_id, last_updated DESC, id);
//
// Appends go through a single atomic turns-concatenation UPDATE, so
// turn order under concurrent appends is the commit order.
type Store struct {
	pool  dbPool
	idGen insight.IDGenerator
	clock insight.Clock
}

// New creates a Store backed by a new pgx pool.
func New(ctx context.Context, cfg Config, idGen insight.IDGenerator, clock insight.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, idGen: idGen, clock: clock}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool dbPool, idGen insight.IDGenerator, clock insight.Clock) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, idGen: idGen, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append adds a turn, creating the conversation when conversationID is
// empty.
func (s *Store) Append(ctx context.Context, ownerID, conversationID, title string, turn insight.Turn) (string, error) {
	turnJSON, err := json.Marshal([]insight.Turn{turn})
	if err != nil {
		return "", fmt.Errorf("marshal turn: %w", err)
	}
	now := s.clock.Now()

	if conversationID == "" {
		id, err := s.idGen.NewID()
		if err != nil {
			return "", fmt.Errorf("assign conversation id: %w", err)
		}
		if title == "" {
			title = insight.TitleFallback
		}
		const insertSQL = `
INSERT INTO conversations (id, owner_id, title, turns, last_updated)
VALUES ($1, $2, $3, $4, $5)`
		if _, err := s.pool.Exec(ctx, insertSQL, id, ownerID, title, turnJSON, now); err != nil {
			return "", fmt.Errorf("insert conversation: %w", err)
		}
		return id, nil
	}

	var storedOwner string
	err = s.pool.QueryRow(ctx,
		`SELECT owner_id FROM conversations WHERE id = $1`, conversationID,
	).Scan(&storedOwner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", insight.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup conversation owner: %w", err)
	}
	if storedOwner != ownerID {
		return "", insight.ErrForbidden
	}

	const appendSQL = `
UPDATE conversations
SET turns = turns || $1::jsonb, last_updated = $2
WHERE id = $3 AND owner_id = $4`
	tag, err := s.pool.Exec(ctx, appendSQL, turnJSON, now, conversationID, ownerID)
	if err != nil {
		return "", fmt.Errorf("append turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Deleted between the owner check and the write.
		return "", insight.ErrNotFound
	}
	return conversationID, nil
}

// List returns summaries for ownerID ordered by last_updated descending
// with a stable id tie-break.
func (s *Store) List(ctx context.Context, ownerID string, skip, limit int) ([]insight.ConversationSummary, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 10
	}
	const listSQL = `
SELECT id, title, last_updated
FROM conversations
WHERE owner_id = $1
ORDER BY last_updated DESC, id
LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, listSQL, ownerID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]insight.ConversationSummary, 0, limit)
	for rows.Next() {
		var sum insight.ConversationSummary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return summaries, nil
}

// Get returns the full conversation for ownerID.
func (s *Store) Get(ctx context.Context, ownerID, conversationID string) (insight.Conversation, error) {
	const getSQL = `
SELECT id, owner_id, title, turns, last_updated
FROM conversations
WHERE id = $1 AND owner_id = $2`
	var (
		conv      insight.Conversation
		turnsJSON []byte
	)
	err := s.pool.QueryRow(ctx, getSQL, conversationID, ownerID).
		Scan(&conv.ID, &conv.Owner, &conv.Title, &turnsJSON, &conv.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return insight.Conversation{}, insight.ErrNotFound
	}
	if err != nil {
		return insight.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if err := json.Unmarshal(turnsJSON, &conv.Turns); err != nil {
		return insight.Conversation{}, fmt.Errorf("decode turns: %w", err)
	}
	return conv, nil
}

// Delete removes the whole conversation.
func (s *Store) Delete(ctx context.Context, ownerID, conversationID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND owner_id = $2`,
		conversationID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return insight.ErrNotFound
	}
	return nil
}
