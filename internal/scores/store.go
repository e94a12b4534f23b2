// Package scores provides a PostgreSQL-backed store for practice rounds.
package scores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/chartdeck/chartdeck/internal/metrics"
	"github.com/chartdeck/chartdeck/internal/protocol"
)

// Store is a PostgreSQL round store.
type Store struct {
	db *sql.DB
}

// New creates a new round store.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the rounds table.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rounds (
			id BIGSERIAL PRIMARY KEY,
			folder TEXT NOT NULL,
			ticker TEXT NOT NULL,
			guess TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			score INT NOT NULL DEFAULT 0,
			played_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS rounds_folder_idx ON rounds (folder, played_at DESC)`)
	if err != nil {
		return fmt.Errorf("create rounds table: %w", err)
	}
	return nil
}

// SaveRound records one answered flashcard.
func (s *Store) SaveRound(ctx context.Context, r *protocol.Round) error {
	if r.PlayedAt.IsZero() {
		r.PlayedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rounds (folder, ticker, guess, correct, score, played_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.Folder, r.Ticker, r.Guess, r.Correct, r.Score, r.PlayedAt).Scan(&r.ID)
	if err != nil {
		metrics.RecordRoundSaved(false)
		return fmt.Errorf("insert round: %w", err)
	}

	metrics.RecordRoundSaved(true)
	return nil
}

// ListRounds returns the most recent rounds for a folder, newest first.
// An empty folder returns rounds across all folders.
func (s *Store) ListRounds(ctx context.Context, folder string, limit int) ([]protocol.Round, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, folder, ticker, guess, correct, score, played_at
		 FROM rounds`
	args := []interface{}{}
	if folder != "" {
		query += ` WHERE folder = $1 ORDER BY played_at DESC LIMIT $2`
		args = append(args, folder, limit)
	} else {
		query += ` ORDER BY played_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []protocol.Round
	for rows.Next() {
		var r protocol.Round
		if err := rows.Scan(&r.ID, &r.Folder, &r.Ticker, &r.Guess, &r.Correct, &r.Score, &r.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes accuracy for a folder.
type Stats struct {
	Rounds   int     `json:"rounds"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
	Score    int     `json:"score"`
}

// FolderStats aggregates round results for a folder. An empty folder
// aggregates everything.
func (s *Store) FolderStats(ctx context.Context, folder string) (*Stats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0),
		 COALESCE(SUM(score), 0) FROM rounds`
	args := []interface{}{}
	if folder != "" {
		query += ` WHERE folder = $1`
		args = append(args, folder)
	}

	var st Stats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.Rounds, &st.Correct, &st.Score); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	if st.Rounds > 0 {
		st.Accuracy = float64(st.Correct) / float64(st.Rounds)
	}
	return &st, nil
}
