package matchstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/park285/padel-scoreboard/internal/scoring"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists matches in a single SQLite table, one row per match.
// JSON columns keep the sets/game_score/history shapes of the API.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// single writer avoids SQLITE_BUSY under concurrent saves
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type matchRow struct {
	players, sets, gameScore, history string
	start                             string
	end                               sql.NullString
}

func encodeRow(m *scoring.Match) (matchRow, error) {
	var r matchRow
	players, err := json.Marshal(m.Players)
	if err != nil {
		return r, fmt.Errorf("marshal players: %w", err)
	}
	sets, err := json.Marshal(m.Sets)
	if err != nil {
		return r, fmt.Errorf("marshal sets: %w", err)
	}
	gs, err := json.Marshal(m.GameScore)
	if err != nil {
		return r, fmt.Errorf("marshal game_score: %w", err)
	}
	history, err := json.Marshal(m.History)
	if err != nil {
		return r, fmt.Errorf("marshal history: %w", err)
	}
	r.players, r.sets, r.gameScore, r.history = string(players), string(sets), string(gs), string(history)
	r.start = m.StartTime.UTC().Format(time.RFC3339Nano)
	if m.EndTime != nil {
		r.end = sql.NullString{String: m.EndTime.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	return r, nil
}

func (s *SQLiteStore) Create(ctx context.Context, m *scoring.Match) error {
	if m == nil {
		return ErrNotFound
	}
	r, err := encodeRow(m)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO matches (id, players, sets, game_score, history, start_time, end_time, status, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query,
		strings.TrimSpace(m.ID), r.players, r.sets, r.gameScore, r.history, r.start, r.end, string(m.Status))
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	m.Version = 1
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*scoring.Match, error) {
	const query = `
		SELECT id, players, sets, game_score, history, start_time, end_time, status, version
		FROM matches WHERE id = ?`
	var (
		m      scoring.Match
		r      matchRow
		status string
	)
	err := s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(
		&m.ID, &r.players, &r.sets, &r.gameScore, &r.history, &r.start, &r.end, &status, &m.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select match: %w", err)
	}
	if err := json.Unmarshal([]byte(r.players), &m.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if err := json.Unmarshal([]byte(r.sets), &m.Sets); err != nil {
		return nil, fmt.Errorf("decode sets: %w", err)
	}
	if err := json.Unmarshal([]byte(r.gameScore), &m.GameScore); err != nil {
		return nil, fmt.Errorf("decode game_score: %w", err)
	}
	if err := json.Unmarshal([]byte(r.history), &m.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if m.StartTime, err = time.Parse(time.RFC3339Nano, r.start); err != nil {
		return nil, fmt.Errorf("decode start_time: %w", err)
	}
	if r.end.Valid {
		end, err := time.Parse(time.RFC3339Nano, r.end.String)
		if err != nil {
			return nil, fmt.Errorf("decode end_time: %w", err)
		}
		m.EndTime = &end
	}
	m.Status = scoring.Status(status)
	return &m, nil
}

func (s *SQLiteStore) Save(ctx context.Context, m *scoring.Match) error {
	if m == nil {
		return ErrNotFound
	}
	r, err := encodeRow(m)
	if err != nil {
		return err
	}
	const query = `
		UPDATE matches SET
			players = ?, sets = ?, game_score = ?, history = ?,
			start_time = ?, end_time = ?, status = ?, version = version + 1
		WHERE id = ? AND version = ?`
	res, err := s.db.ExecContext(ctx, query,
		r.players, r.sets, r.gameScore, r.history, r.start, r.end, string(m.Status),
		strings.TrimSpace(m.ID), m.Version)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = ?`, strings.TrimSpace(m.ID)).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrStale
	}
	m.Version++
	return nil
}
