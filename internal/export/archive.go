package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// ArchiveSink upserts completed match snapshots into Postgres.
type ArchiveSink struct {
	db *sql.DB
}

func NewArchiveSink(databaseURL string) (*ArchiveSink, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s := &ArchiveSink{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ArchiveSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *ArchiveSink) ensureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS padel_matches (
		match_id           TEXT PRIMARY KEY,
		player0            TEXT NOT NULL,
		player1            TEXT NOT NULL,
		sets               JSONB NOT NULL,
		current_game_score TEXT NOT NULL,
		events             JSONB NOT NULL,
		status             TEXT NOT NULL,
		started_at         TIMESTAMPTZ NOT NULL,
		ended_at           TIMESTAMPTZ,
		duration_ms        BIGINT NOT NULL DEFAULT 0,
		archived_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create padel_matches: %w", err)
	}
	return nil
}

type archiveRow struct {
	sets     string
	events   string
	ended    sql.NullTime
	duration int64
}

func buildArchiveRow(snap *Snapshot) (archiveRow, error) {
	var r archiveRow
	sets, err := json.Marshal(snap.Score.Sets)
	if err != nil {
		return r, fmt.Errorf("marshal sets: %w", err)
	}
	events, err := json.Marshal(snap.Events)
	if err != nil {
		return r, fmt.Errorf("marshal events: %w", err)
	}
	r.sets, r.events = string(sets), string(events)
	if snap.EndTime != nil {
		r.ended = sql.NullTime{Time: *snap.EndTime, Valid: true}
		r.duration = snap.EndTime.Sub(snap.StartTime).Milliseconds()
		if r.duration < 0 {
			r.duration = 0
		}
	}
	return r, nil
}

// Put upserts the snapshot; re-exports of the same match overwrite the row.
func (s *ArchiveSink) Put(ctx context.Context, snap *Snapshot) (string, error) {
	if s == nil || s.db == nil || snap == nil {
		return "", fmt.Errorf("archive sink not initialized")
	}
	r, err := buildArchiveRow(snap)
	if err != nil {
		return "", err
	}
	const q = `INSERT INTO padel_matches (
		match_id, player0, player1, sets, current_game_score, events,
		status, started_at, ended_at, duration_ms
	  ) VALUES ($1,$2,$3,$4::jsonb,$5,$6::jsonb,$7,$8,$9,$10)
	  ON CONFLICT (match_id) DO UPDATE SET
		player0=EXCLUDED.player0,
		player1=EXCLUDED.player1,
		sets=EXCLUDED.sets,
		current_game_score=EXCLUDED.current_game_score,
		events=EXCLUDED.events,
		status=EXCLUDED.status,
		started_at=EXCLUDED.started_at,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms,
		archived_at=now()`
	_, err = s.db.ExecContext(ctx, q,
		snap.MatchID,
		snap.Players[0], snap.Players[1],
		r.sets, snap.CurrentGameScore, r.events,
		string(snap.Status), snap.StartTime, r.ended, r.duration,
	)
	if err != nil {
		return "", fmt.Errorf("archive match: %w", err)
	}
	return "postgres:padel_matches/" + snap.MatchID, nil
}
