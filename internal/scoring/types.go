package scoring

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Side identifies one of the two competitors. Index 0 and 1 are fixed for the whole match.
type Side int

const (
	Side0 Side = 0
	Side1 Side = 1
)

func (s Side) Valid() bool { return s == Side0 || s == Side1 }

// Opponent returns the other side.
func (s Side) Opponent() Side { return 1 - s }

// Status represents the match lifecycle state.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Pair is a per-side counter (games in a set, points in a game).
// It is stored as a two-element JSON array to keep the by-index record shape.
type Pair struct {
	Side0 int
	Side1 int
}

func (p Pair) At(s Side) int {
	if s == Side1 {
		return p.Side1
	}
	return p.Side0
}

func (p *Pair) Set(s Side, v int) {
	if s == Side1 {
		p.Side1 = v
		return
	}
	p.Side0 = v
}

func (p *Pair) Add(s Side, delta int) { p.Set(s, p.At(s)+delta) }

// String formats the pair as "A-B".
func (p Pair) String() string { return fmt.Sprintf("%d-%d", p.Side0, p.Side1) }

// ParsePair reads the "A-B" form written by String. Both counts must be non-negative.
func ParsePair(s string) (Pair, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Pair{}, fmt.Errorf("score %q: want A-B", s)
	}
	x, err := strconv.Atoi(a)
	if err != nil || x < 0 {
		return Pair{}, fmt.Errorf("score %q: bad left count", s)
	}
	y, err := strconv.Atoi(b)
	if err != nil || y < 0 {
		return Pair{}, fmt.Errorf("score %q: bad right count", s)
	}
	return Pair{Side0: x, Side1: y}, nil
}

func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Side0, p.Side1})
}

func (p *Pair) UnmarshalJSON(b []byte) error {
	var raw []int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("score pair must have 2 elements, got %d", len(raw))
	}
	p.Side0, p.Side1 = raw[0], raw[1]
	return nil
}

// PointEvent is one entry of the replay log.
type PointEvent struct {
	Point Side      `json:"point"`
	Time  time.Time `json:"time"`
}

// Match is the full persisted state of one match.
// Sets and GameScore are a cached projection of History; see CheckConsistency.
type Match struct {
	ID        string       `json:"id"`
	Players   [2]string    `json:"players"`
	Sets      []Pair       `json:"sets"`
	GameScore Pair         `json:"game_score"`
	History   []PointEvent `json:"history"`
	Status    Status       `json:"status"`
	StartTime time.Time    `json:"start_time"`
	EndTime   *time.Time   `json:"end_time,omitempty"`

	// Version is maintained by the match store for compare-and-swap saves.
	Version int64 `json:"version"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (m Match) Clone() Match {
	out := m
	out.Sets = append([]Pair(nil), m.Sets...)
	if out.Sets == nil {
		out.Sets = []Pair{}
	}
	out.History = append([]PointEvent(nil), m.History...)
	if out.History == nil {
		out.History = []PointEvent{}
	}
	if m.EndTime != nil {
		t := *m.EndTime
		out.EndTime = &t
	}
	return out
}

// CurrentSet returns the open (last) set.
func (m Match) CurrentSet() Pair {
	if len(m.Sets) == 0 {
		return Pair{}
	}
	return m.Sets[len(m.Sets)-1]
}

func (m Match) InProgress() bool { return m.Status == StatusInProgress }
