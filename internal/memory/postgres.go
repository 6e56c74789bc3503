package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists memories in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			source TEXT NULL,
			embedding REAL[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories (created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_tags ON memories USING GIN (tags);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_source ON memories (source);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const memoryColumns = `id, text, tags, source, embedding, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, text string, tags []string, source *string, embedding []float32) (Memory, error) {
	m := Memory{
		ID:        uuid.NewString(),
		Text:      text,
		Tags:      tags,
		Source:    source,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
	m.UpdatedAt = m.CreatedAt
	if m.Tags == nil {
		m.Tags = []string{}
	}

	var stored string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO memories (id, text, tags, source, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.ID, m.Text, m.Tags, m.Source, m.Embedding, m.CreatedAt, m.UpdatedAt,
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Memory{}, fmt.Errorf("no record returned after insert")
		}
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}

	return m, nil
}

func (s *PostgresStore) All(ctx context.Context) ([]Memory, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+memoryColumns+` FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Memory, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * opts.PerPage

	var (
		conds []string
		args  []any
	)
	if opts.Tag != "" {
		args = append(args, opts.Tag)
		conds = append(conds, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if opts.Source != "" {
		args = append(args, opts.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}

	query := `SELECT ` + memoryColumns + ` FROM memories`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, opts.PerPage)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories page: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *PostgresStore) UpdateFacets(ctx context.Context, id string, tags []string, source *string) (Memory, error) {
	if tags == nil {
		tags = []string{}
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE memories SET tags=$2, source=$3, updated_at=$4 WHERE id=$1 RETURNING `+memoryColumns,
		id, tags, source, time.Now().UTC(),
	)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Memory{}, ErrNotFound
		}
		return Memory{}, fmt.Errorf("update memory facets: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (Memory, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM memories WHERE id=$1 RETURNING `+memoryColumns, id)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Memory{}, ErrNotFound
		}
		return Memory{}, fmt.Errorf("delete memory: %w", err)
	}
	return m, nil
}

// Count degrades to zero when the count row cannot be read; the total is a
// non-critical statistic and must not fail the stats request.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *PostgresStore) TagCounts(ctx context.Context) ([]LabelCount, error) {
	memories, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return aggregateTags(memories), nil
}

func (s *PostgresStore) SourceCounts(ctx context.Context) ([]LabelCount, error) {
	memories, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return aggregateSources(memories), nil
}

func (s *PostgresStore) RecentTexts(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT text FROM memories ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent texts: %w", err)
	}
	defer rows.Close()

	texts := make([]string, 0, limit)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan text row: %w", err)
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate text rows: %w", err)
	}
	return texts, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanMemories(rows pgx.Rows) ([]Memory, error) {
	var items []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return items, nil
}

func scanMemory(row pgx.Row) (Memory, error) {
	var m Memory
	err := row.Scan(&m.ID, &m.Text, &m.Tags, &m.Source, &m.Embedding, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Memory{}, err
	}
	return m, nil
}
