package matchstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// PendingExports remembers completed matches whose export has not been written yet.
// Backends that implement it keep the queue across restarts.
type PendingExports interface {
	MarkPending(ctx context.Context, id string) error
	ClearPending(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]string, error)
}

// MemoryPending is a process-local queue, used with the memory backend.
type MemoryPending struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{ids: make(map[string]struct{})}
}

func (p *MemoryPending) MarkPending(ctx context.Context, id string) error {
	p.mu.Lock()
	p.ids[strings.TrimSpace(id)] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *MemoryPending) ClearPending(ctx context.Context, id string) error {
	p.mu.Lock()
	delete(p.ids, strings.TrimSpace(id))
	p.mu.Unlock()
	return nil
}

func (p *MemoryPending) ListPending(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.ids))
	for id := range p.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

const pendingKey = "padel:export:pending"

func (s *RedisStore) MarkPending(ctx context.Context, id string) error {
	return s.rdb.SAdd(ctx, pendingKey, strings.TrimSpace(id)).Err()
}

func (s *RedisStore) ClearPending(ctx context.Context, id string) error {
	return s.rdb.SRem(ctx, pendingKey, strings.TrimSpace(id)).Err()
}

func (s *RedisStore) ListPending(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, pendingKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *SQLiteStore) MarkPending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_exports (match_id) VALUES (?) ON CONFLICT(match_id) DO NOTHING`,
		strings.TrimSpace(id))
	return err
}

func (s *SQLiteStore) ClearPending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_exports WHERE match_id = ?`, strings.TrimSpace(id))
	return err
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT match_id FROM pending_exports ORDER BY match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
