package padelclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/padel-scoreboard/internal/livefeed"
)

// ErrFeedRejected is returned when the server answers the subscription with an error frame.
var ErrFeedRejected = errors.New("live feed rejected subscription")

// Watcher follows one match on the live feed and reconnects on transport errors.
type Watcher struct {
	liveURL              string
	maxReconnectAttempts int
	pingInterval         time.Duration
}

func NewWatcher(liveURL string, maxReconnectAttempts int) *Watcher {
	u := strings.TrimRight(liveURL, "/")
	switch {
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	}
	return &Watcher{
		liveURL:              u,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
	}
}

// Watch blocks, calling fn for every snapshot frame, until ctx is done,
// the server rejects the match, or reconnect attempts run out.
func (w *Watcher) Watch(ctx context.Context, matchID string, fn func(livefeed.Frame)) error {
	target := w.liveURL + livefeed.PathPrefix + url.PathEscape(matchID)
	attempts := 0
	for {
		received, err := w.session(ctx, target, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrFeedRejected) {
			return err
		}
		if received {
			attempts = 0
		}
		attempts++
		if attempts > w.maxReconnectAttempts {
			return fmt.Errorf("live feed: %w", err)
		}
		if serr := sleepWithContext(ctx, backoffDuration(attempts)); serr != nil {
			return serr
		}
	}
}

func (w *Watcher) session(ctx context.Context, target string, fn func(livefeed.Frame)) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.CloseNow()

	sctx, stop := context.WithCancel(ctx)
	defer stop()
	go w.pingLoop(sctx, conn)

	received := false
	for {
		var f livefeed.Frame
		if err := wsjson.Read(sctx, conn, &f); err != nil {
			return received, err
		}
		if f.Type == livefeed.FrameError {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return received, fmt.Errorf("%w: %s", ErrFeedRejected, f.Error)
		}
		received = true
		fn(f)
	}
}

func (w *Watcher) pingLoop(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(w.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}
