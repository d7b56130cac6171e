// Package padelclient talks to a running padel-server over HTTP and the live feed.
package padelclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/scoring"
	"github.com/park285/padel-scoreboard/pkg/padeldto"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, nil, true)
}

func (c *Client) StartMatch(ctx context.Context, players []string) (string, error) {
	var resp padeldto.StartMatchResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/match/start", padeldto.StartMatchRequest{Players: players}, &resp, false); err != nil {
		return "", err
	}
	return resp.MatchID, nil
}

func (c *Client) AddPoint(ctx context.Context, matchID string, side int) error {
	req := padeldto.PointRequest{MatchID: matchID, Player: &side}
	return c.doJSON(ctx, fasthttp.MethodPost, "/match/point", req, nil, false)
}

func (c *Client) Undo(ctx context.Context, matchID string) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/match/undo", padeldto.MatchIDRequest{MatchID: matchID}, nil, false)
}

func (c *Client) EndMatch(ctx context.Context, matchID string) (string, error) {
	var resp padeldto.EndMatchResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/match/end", padeldto.MatchIDRequest{MatchID: matchID}, &resp, false); err != nil {
		return "", err
	}
	return resp.ExportedTo, nil
}

func (c *Client) Match(ctx context.Context, matchID string) (*padeldto.MatchView, error) {
	var v padeldto.MatchView
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/match/"+url.PathEscape(matchID), nil, &v, true); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Export(ctx context.Context, matchID string) (*export.Snapshot, error) {
	var snap export.Snapshot
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/match/"+url.PathEscape(matchID)+"/export", nil, &snap, true); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) Verify(ctx context.Context, matchID string) (*scoring.Consistency, error) {
	var rep scoring.Consistency
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/match/"+url.PathEscape(matchID)+"/verify", nil, &rep, true); err != nil {
		return nil, err
	}
	return &rep, nil
}

// doJSON retries transport errors, 429 and 5xx answers only when retry is set;
// mutations pass false so a point is never recorded twice.
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = apiError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func apiError(status int, body []byte) error {
	var e padeldto.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Detail == "" {
		e.Detail = truncate(string(body), 512)
	}
	return &padeldto.APIError{Status: status, Detail: e.Detail}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = max(1, min(attempt, 6))
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
