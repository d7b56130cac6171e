package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/padel-scoreboard/internal/config"
	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/matchsvc"
	"github.com/park285/padel-scoreboard/internal/obslog"
	"github.com/park285/padel-scoreboard/internal/padelbuilder"
	"github.com/park285/padel-scoreboard/internal/padelclient"
	"github.com/park285/padel-scoreboard/internal/scoring"
)

// Backend is what padelctl drives: the configured store directly, or a running server.
type Backend interface {
	Start(ctx context.Context, players []string) (string, error)
	Point(ctx context.Context, matchID string, side int) error
	Undo(ctx context.Context, matchID string) error
	End(ctx context.Context, matchID string) (string, error)
	Snapshot(ctx context.Context, matchID string) (*export.Snapshot, error)
	Verify(ctx context.Context, matchID string) (*scoring.Consistency, error)
}

// Opener builds the backend for one invocation. The returned func releases it.
type Opener func(ctx context.Context, opts *RootOptions) (Backend, func() error, error)

// DefaultOpener talks to --server when given, otherwise wires the local store from config.
func DefaultOpener(ctx context.Context, opts *RootOptions) (Backend, func() error, error) {
	if strings.TrimSpace(opts.Server) != "" {
		return NewRemoteBackend(padelclient.NewClient(opts.Server)), func() error { return nil }, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "config", err)
	}
	deps, err := padelbuilder.New(ctx, cfg, obslog.L())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "init", err)
	}
	return NewLocalBackend(deps.Service), deps.Close, nil
}

type localBackend struct {
	svc *matchsvc.Service
}

func NewLocalBackend(svc *matchsvc.Service) Backend {
	return &localBackend{svc: svc}
}

func (b *localBackend) Start(ctx context.Context, players []string) (string, error) {
	m, err := b.svc.Start(ctx, players)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (b *localBackend) Point(ctx context.Context, matchID string, side int) error {
	_, err := b.svc.RecordPoint(ctx, matchID, scoring.Side(side))
	return err
}

func (b *localBackend) Undo(ctx context.Context, matchID string) error {
	_, err := b.svc.Undo(ctx, matchID)
	return err
}

func (b *localBackend) End(ctx context.Context, matchID string) (string, error) {
	res, err := b.svc.End(ctx, matchID)
	if err != nil {
		return "", err
	}
	return res.Location, nil
}

func (b *localBackend) Snapshot(ctx context.Context, matchID string) (*export.Snapshot, error) {
	return b.svc.Export(ctx, matchID)
}

func (b *localBackend) Verify(ctx context.Context, matchID string) (*scoring.Consistency, error) {
	c, err := b.svc.Verify(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type remoteBackend struct {
	c *padelclient.Client
}

func NewRemoteBackend(c *padelclient.Client) Backend {
	return &remoteBackend{c: c}
}

func (b *remoteBackend) Start(ctx context.Context, players []string) (string, error) {
	return b.c.StartMatch(ctx, players)
}

func (b *remoteBackend) Point(ctx context.Context, matchID string, side int) error {
	return b.c.AddPoint(ctx, matchID, side)
}

func (b *remoteBackend) Undo(ctx context.Context, matchID string) error {
	return b.c.Undo(ctx, matchID)
}

func (b *remoteBackend) End(ctx context.Context, matchID string) (string, error) {
	return b.c.EndMatch(ctx, matchID)
}

func (b *remoteBackend) Snapshot(ctx context.Context, matchID string) (*export.Snapshot, error) {
	return b.c.Export(ctx, matchID)
}

func (b *remoteBackend) Verify(ctx context.Context, matchID string) (*scoring.Consistency, error) {
	return b.c.Verify(ctx, matchID)
}

func formatSets(sets []scoring.Pair) string {
	parts := make([]string, 0, len(sets))
	for _, s := range sets {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " ")
}

func parseSide(raw string) (int, error) {
	switch strings.TrimSpace(raw) {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, NewExitError(ExitCommandError, fmt.Sprintf("side must be 0 or 1, got %q", raw))
}
