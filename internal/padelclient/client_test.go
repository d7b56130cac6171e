package padelclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/httpapi"
	"github.com/park285/padel-scoreboard/internal/livefeed"
	"github.com/park285/padel-scoreboard/internal/matchstore"
	"github.com/park285/padel-scoreboard/internal/matchsvc"
	"github.com/park285/padel-scoreboard/internal/scoring"
	"github.com/park285/padel-scoreboard/pkg/padeldto"
)

type nopSink struct{}

func (nopSink) Put(ctx context.Context, snap *export.Snapshot) (string, error) {
	return "mem://" + snap.MatchID, nil
}

// startServer runs the real HTTP API and live feed on loopback listeners.
func startServer(t *testing.T) (apiURL, liveURL string, svc *matchsvc.Service) {
	t.Helper()
	var hub *livefeed.Hub
	svc = matchsvc.New(matchstore.NewMemoryStore(), nopSink{}, matchsvc.Config{},
		matchsvc.WithPublisher(publisherFunc(func(s *export.Snapshot) { hub.Publish(s) })))
	hub = livefeed.NewHub(svc.Export)

	api := httpapi.New(svc, nil, httpapi.Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = api.App().Listener(ln) }()
	t.Cleanup(func() { _ = api.App().Shutdown() })

	live := httptest.NewServer(hub)
	t.Cleanup(live.Close)
	return "http://" + ln.Addr().String(), live.URL, svc
}

type publisherFunc func(*export.Snapshot)

func (f publisherFunc) Publish(s *export.Snapshot) { f(s) }

func TestClientRoundTrip(t *testing.T) {
	apiURL, _, _ := startServer(t)
	c := NewClient(apiURL, WithTimeout(5*time.Second))
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	id, err := c.StartMatch(ctx, []string{"Ana", "Bea"})
	if err != nil || id == "" {
		t.Fatalf("StartMatch: %q %v", id, err)
	}
	for _, side := range []int{1, 1, 0} {
		if err := c.AddPoint(ctx, id, side); err != nil {
			t.Fatalf("AddPoint: %v", err)
		}
	}
	if err := c.Undo(ctx, id); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	v, err := c.Match(ctx, id)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if v.GameScore != [2]int{0, 2} || len(v.History) != 2 {
		t.Fatalf("view = %+v", v)
	}
	rep, err := c.Verify(ctx, id)
	if err != nil || !rep.Consistent {
		t.Fatalf("Verify: %+v %v", rep, err)
	}
	loc, err := c.EndMatch(ctx, id)
	if err != nil || loc != "mem://"+id {
		t.Fatalf("EndMatch: %q %v", loc, err)
	}
	snap, err := c.Export(ctx, id)
	if err != nil || snap.Status != scoring.StatusCompleted {
		t.Fatalf("Export: %+v %v", snap, err)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	apiURL, _, _ := startServer(t)
	c := NewClient(apiURL)
	_, err := c.Match(context.Background(), "ghost")
	var apiErr *padeldto.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Status != 404 || apiErr.Detail != "Матч не найден" {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestWatcherReceivesUpdates(t *testing.T) {
	_, liveURL, svc := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := svc.Start(ctx, []string{"A", "B"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	frames := make(chan livefeed.Frame, 8)
	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(liveURL, 0).Watch(ctx, m.ID, func(f livefeed.Frame) { frames <- f })
	}()

	first := <-frames
	if first.Match == nil || first.Match.CurrentGameScore != "0-0" {
		t.Fatalf("first frame = %+v", first)
	}
	if _, err := svc.RecordPoint(ctx, m.ID, scoring.Side0); err != nil {
		t.Fatalf("RecordPoint: %v", err)
	}
	next := <-frames
	if next.Match == nil || next.Match.CurrentGameScore != "1-0" {
		t.Fatalf("next frame = %+v", next)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("watch err = %v", err)
	}
}

func TestWatcherRejectedMatch(t *testing.T) {
	_, liveURL, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := NewWatcher(liveURL, 3).Watch(ctx, "ghost", func(livefeed.Frame) {})
	if !errors.Is(err, ErrFeedRejected) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewWatcherSchemes(t *testing.T) {
	if w := NewWatcher("http://h:8001/", 0); w.liveURL != "ws://h:8001" {
		t.Fatalf("liveURL = %q", w.liveURL)
	}
	if w := NewWatcher("https://h", 0); w.liveURL != "wss://h" {
		t.Fatalf("liveURL = %q", w.liveURL)
	}
}

func TestReadsRetryOnTooManyRequests(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if gets.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if gets.Load() != 3 {
		t.Fatalf("gets = %d, want 3", gets.Load())
	}

	err := c.Undo(context.Background(), "m1")
	var apiErr *padeldto.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("undo err = %v", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("mutation retried: posts = %d", posts.Load())
	}
}
