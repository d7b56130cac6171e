// Package matchsvc coordinates the scoring engine, the match store and the export sinks.
package matchsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/matchstore"
	"github.com/park285/padel-scoreboard/internal/scoring"
)

var (
	// ErrExportFailed means the match was completed but its snapshot could not be written.
	// The match id is queued for RetryPendingExports.
	ErrExportFailed = errors.New("match export failed")
	// ErrBusy means a save kept losing the version race after every retry.
	ErrBusy = errors.New("match is busy, try again")
)

// Publisher receives every snapshot after a successful mutation.
type Publisher interface {
	Publish(snap *export.Snapshot)
}

type Config struct {
	SaveRetries int
}

type Service struct {
	store  matchstore.Store
	sink   export.Sink
	feed   Publisher
	cfg    Config
	logger *zap.Logger

	now   func() time.Time
	newID func() string

	locks keyedMutex

	// pending lives in the store when the backend supports it, so a restart
	// picks up exports that were still failing.
	pending matchstore.PendingExports
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.feed = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store matchstore.Store, sink export.Sink, cfg Config, opts ...Option) *Service {
	if cfg.SaveRetries <= 0 {
		cfg.SaveRetries = 3
	}
	s := &Service{
		store:   store,
		sink:    sink,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	if q, ok := store.(matchstore.PendingExports); ok {
		s.pending = q
	} else {
		s.pending = matchstore.NewMemoryPending()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// EndResult is what End hands back: the completed match and where its snapshot went.
type EndResult struct {
	Match    *scoring.Match
	Location string
}

func (s *Service) Start(ctx context.Context, players []string) (*scoring.Match, error) {
	m, err := scoring.StartMatch(s.newID(), players, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, &m); err != nil {
		return nil, err
	}
	s.logger.Info("match_start",
		zap.String("match_id", m.ID),
		zap.String("player0", m.Players[0]),
		zap.String("player1", m.Players[1]),
	)
	s.publish(&m)
	return &m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*scoring.Match, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

func (s *Service) RecordPoint(ctx context.Context, id string, side scoring.Side) (*scoring.Match, error) {
	// side is validated before the lookup so a bad body never costs a store round trip
	if !side.Valid() {
		return nil, scoring.ErrInvalidSide
	}
	m, err := s.mutate(ctx, id, func(cur scoring.Match) (scoring.Match, error) {
		return scoring.ApplyPoint(cur, side, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("match_point",
		zap.String("match_id", m.ID),
		zap.Int("side", int(side)),
		zap.String("game", m.GameScore.String()),
		zap.Int("sets", len(m.Sets)),
	)
	return m, nil
}

func (s *Service) Undo(ctx context.Context, id string) (*scoring.Match, error) {
	m, err := s.mutate(ctx, id, scoring.UndoLastPoint)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("match_undo", zap.String("match_id", m.ID), zap.Int("events", len(m.History)))
	return m, nil
}

// Export returns the export shape of a match without writing it anywhere.
func (s *Service) Export(ctx context.Context, id string) (*export.Snapshot, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return export.FromMatch(m), nil
}

func (s *Service) Verify(ctx context.Context, id string) (scoring.Consistency, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return scoring.Consistency{}, err
	}
	c := scoring.CheckConsistency(*m)
	if !c.Consistent {
		s.logger.Warn("match_projection_drift",
			zap.String("match_id", c.MatchID),
			zap.Stringer("cached_game", c.CachedGameScore),
			zap.Stringer("replayed_game", c.ReplayedGameScore),
		)
	}
	return c, nil
}

// End completes the match and exports it. Ending an already completed match
// overwrites its end time and exports again.
func (s *Service) End(ctx context.Context, id string) (*EndResult, error) {
	m, err := s.mutate(ctx, id, func(cur scoring.Match) (scoring.Match, error) {
		return scoring.EndMatch(cur, s.now()), nil
	})
	if err != nil {
		return nil, err
	}
	loc, err := s.exportMatch(ctx, m)
	res := &EndResult{Match: m, Location: loc}
	if err != nil {
		s.markPending(ctx, m.ID)
		return res, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	s.clearPending(ctx, m.ID)
	s.logger.Info("match_end", zap.String("match_id", m.ID), zap.String("exported_to", loc))
	return res, nil
}

func (s *Service) exportMatch(ctx context.Context, m *scoring.Match) (string, error) {
	if s.sink == nil {
		return "", errors.New("no export sink configured")
	}
	loc, err := s.sink.Put(ctx, export.FromMatch(m))
	if err != nil {
		s.logger.Error("match_export_failed", zap.String("match_id", m.ID), zap.Error(err))
		// a fanout may have written the primary copy while a secondary failed
		return loc, err
	}
	return loc, nil
}

// mutate loads, transforms and saves one match under its id lock,
// reloading when the store reports a concurrent write.
func (s *Service) mutate(ctx context.Context, id string, fn func(scoring.Match) (scoring.Match, error)) (*scoring.Match, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, matchstore.ErrNotFound
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 1; attempt <= s.cfg.SaveRetries; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := fn(*cur)
		if err != nil {
			return nil, err
		}
		next.Version = cur.Version
		err = s.store.Save(ctx, &next)
		if errors.Is(err, matchstore.ErrStale) {
			s.logger.Debug("match_save_stale", zap.String("match_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publish(&next)
		return &next, nil
	}
	return nil, ErrBusy
}

func (s *Service) publish(m *scoring.Match) {
	if s.feed == nil || m == nil {
		return
	}
	s.feed.Publish(export.FromMatch(m))
}

func (s *Service) markPending(ctx context.Context, id string) {
	if err := s.pending.MarkPending(ctx, id); err != nil {
		s.logger.Error("export_pending_mark_failed", zap.String("match_id", id), zap.Error(err))
	}
}

// PendingExports lists completed matches whose export has not succeeded yet.
func (s *Service) PendingExports(ctx context.Context) ([]string, error) {
	return s.pending.ListPending(ctx)
}

// RetryPendingExports re-exports every queued match and returns how many succeeded.
func (s *Service) RetryPendingExports(ctx context.Context) int {
	ids, err := s.PendingExports(ctx)
	if err != nil {
		s.logger.Warn("export_retry_list_failed", zap.Error(err))
		return 0
	}
	ok := 0
	for _, id := range ids {
		m, err := s.store.Get(ctx, id)
		if errors.Is(err, matchstore.ErrNotFound) {
			// expired from the store; nothing left to export
			s.clearPending(ctx, id)
			continue
		}
		if err != nil {
			s.logger.Warn("export_retry_load_failed", zap.String("match_id", id), zap.Error(err))
			continue
		}
		loc, err := s.exportMatch(ctx, m)
		if err != nil {
			continue
		}
		s.clearPending(ctx, id)
		ok++
		s.logger.Info("export_retry_ok", zap.String("match_id", id), zap.String("exported_to", loc))
	}
	return ok
}

func (s *Service) clearPending(ctx context.Context, id string) {
	if err := s.pending.ClearPending(ctx, id); err != nil {
		s.logger.Warn("export_pending_clear_failed", zap.String("match_id", id), zap.Error(err))
	}
}
