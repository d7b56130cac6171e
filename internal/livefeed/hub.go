// Package livefeed pushes match snapshots to websocket subscribers.
package livefeed

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/obslog"
)

// PathPrefix is where the hub is mounted; the match id follows it.
const PathPrefix = "/live/"

// Frame is one websocket message.
type Frame struct {
	Type  string           `json:"type"`
	Match *export.Snapshot `json:"match,omitempty"`
	Error string           `json:"error,omitempty"`
}

const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Loader returns the current snapshot of a match, used for the first frame.
type Loader func(ctx context.Context, matchID string) (*export.Snapshot, error)

type subscriber struct {
	ch chan *export.Snapshot
}

// Hub fans out published snapshots to every subscriber of the same match.
type Hub struct {
	load           Loader
	allowedOrigins []string
	pingInterval   time.Duration
	writeTimeout   time.Duration
	buffer         int

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type Option func(*Hub)

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) { h.allowedOrigins = origins }
}

func WithBuffer(n int) Option {
	return func(h *Hub) { h.buffer = n }
}

func NewHub(load Loader, opts ...Option) *Hub {
	h := &Hub{
		load:         load,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		buffer:       16,
		subs:         make(map[string]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.buffer <= 0 {
		h.buffer = 1
	}
	return h
}

// Publish never blocks; a subscriber whose buffer is full is dropped.
func (h *Hub) Publish(snap *export.Snapshot) {
	if h == nil || snap == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[snap.MatchID] {
		select {
		case sub.ch <- snap:
		default:
			obslog.L().Warn("livefeed_drop_slow_subscriber", zap.String("match_id", snap.MatchID))
			h.removeLocked(snap.MatchID, sub)
		}
	}
}

// Subscribers returns the number of live subscribers of a match.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

func (h *Hub) subscribe(matchID string) *subscriber {
	sub := &subscriber{ch: make(chan *export.Snapshot, h.buffer)}
	h.mu.Lock()
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[matchID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(matchID string, sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(matchID, sub)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(matchID string, sub *subscriber) {
	set, ok := h.subs[matchID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, matchID)
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := strings.Trim(strings.TrimPrefix(r.URL.Path, PathPrefix), "/")
	if matchID == "" || strings.Contains(matchID, "/") {
		http.NotFound(w, r)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns(),
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("livefeed_accept_failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// subscribe before loading so a point saved in between is still delivered
	sub := h.subscribe(matchID)
	defer h.unsubscribe(matchID, sub)

	ctx := r.Context()
	snap, err := h.load(ctx, matchID)
	if err != nil {
		_ = h.write(ctx, conn, Frame{Type: FrameError, Error: err.Error()})
		_ = conn.Close(websocket.StatusPolicyViolation, "match unavailable")
		return
	}

	if err := h.write(ctx, conn, Frame{Type: FrameSnapshot, Match: snap}); err != nil {
		return
	}
	obslog.L().Debug("livefeed_subscribed", zap.String("match_id", matchID))

	// reads are discarded; CloseRead also cancels ctx when the peer goes away
	ctx = conn.CloseRead(ctx)
	h.stream(ctx, conn, sub, snap.Version)
}

// stream forwards queued snapshots. Frames at or below the last sent version
// were already covered by an earlier frame and are skipped; version 0 is unordered.
func (h *Hub) stream(ctx context.Context, conn *websocket.Conn, sub *subscriber, sent int64) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.ch:
			if !ok {
				_ = conn.Close(websocket.StatusTryAgainLater, "subscriber too slow")
				return
			}
			if snap.Version != 0 && snap.Version <= sent {
				continue
			}
			if err := h.write(ctx, conn, Frame{Type: FrameSnapshot, Match: snap}); err != nil {
				return
			}
			sent = snap.Version
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					_ = conn.Close(websocket.StatusGoingAway, "ping failure")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, f Frame) error {
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, conn, f); err != nil {
		if !errors.Is(err, context.Canceled) {
			obslog.L().Debug("livefeed_write_failed", zap.Error(err))
		}
		return err
	}
	return nil
}

func (h *Hub) originPatterns() []string {
	out := make([]string, 0, len(h.allowedOrigins))
	for _, o := range h.allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		// patterns match the host part only
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, o)
	}
	return out
}
