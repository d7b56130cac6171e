package scoring

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidState   = errors.New("match is not in progress")
	ErrEmptyHistory   = fmt.Errorf("%w: no points to undo", ErrInvalidState)
	ErrInvalidSide    = errors.New("side must be 0 or 1")
	ErrInvalidPlayers = errors.New("exactly two non-empty player labels are required")
	ErrInvalidID      = errors.New("match id is required")
)

const (
	gamePoints     = 4
	deuceThreshold = 3
	advantageWin   = 5
	setGames       = 6
	setMargin      = 2
)

// StartMatch creates a fresh in-progress match with one open set.
// The identifier is supplied by the caller so the engine stays deterministic.
func StartMatch(id string, players []string, now time.Time) (Match, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Match{}, ErrInvalidID
	}
	if len(players) != 2 {
		return Match{}, ErrInvalidPlayers
	}
	var labels [2]string
	for i, p := range players {
		p = strings.TrimSpace(p)
		if p == "" {
			return Match{}, ErrInvalidPlayers
		}
		labels[i] = p
	}
	return Match{
		ID:        id,
		Players:   labels,
		Sets:      []Pair{{}},
		GameScore: Pair{},
		History:   []PointEvent{},
		Status:    StatusInProgress,
		StartTime: now,
	}, nil
}

// ApplyPoint awards one point to side and returns the updated match.
//
// Point ladder: reaching 4 while the opponent has fewer than 3 wins the game;
// 4-4 clamps back to 3-3; reaching 5 (only possible from 4-3) wins the game.
// Every other score is kept as the raw count.
func ApplyPoint(m Match, side Side, now time.Time) (Match, error) {
	if !m.InProgress() {
		return m, ErrInvalidState
	}
	if !side.Valid() {
		return m, ErrInvalidSide
	}
	out := m.Clone()
	if len(out.Sets) == 0 {
		out.Sets = []Pair{{}}
	}

	winner, loser := side, side.Opponent()
	score := out.GameScore
	score.Add(winner, 1)
	w, l := score.At(winner), score.At(loser)

	switch {
	case w == gamePoints && l < deuceThreshold:
		out.Sets = winGame(out.Sets, winner)
		score = Pair{}
	case w == gamePoints && l == gamePoints:
		score = Pair{Side0: deuceThreshold, Side1: deuceThreshold}
	case w == advantageWin:
		out.Sets = winGame(out.Sets, winner)
		score = Pair{}
	}

	out.GameScore = score
	out.History = append(out.History, PointEvent{Point: side, Time: now})
	return out, nil
}

// winGame credits a game to winner in the open set and opens a new set when the
// open one is decided. A new set only opens while every earlier set is below six
// games on both sides, so in practice only the first set ever closes; later sets
// keep accumulating games. This mirrors the scoring sheet the service replaced.
func winGame(sets []Pair, winner Side) []Pair {
	last := len(sets) - 1
	sets[last].Add(winner, 1)
	cur := sets[last]
	won := cur.At(winner)
	if won < setGames || won-cur.At(winner.Opponent()) < setMargin {
		return sets
	}
	if len(sets) == 1 || priorSetsOpen(sets[:last]) {
		sets = append(sets, Pair{})
	}
	return sets
}

func priorSetsOpen(prior []Pair) bool {
	for _, s := range prior {
		if s.Side0 >= setGames || s.Side1 >= setGames {
			return false
		}
	}
	return true
}

// UndoLastPoint removes the latest point and decrements that side's game score (floor 0).
// Game and set rollovers caused by the removed point are not reversed.
func UndoLastPoint(m Match) (Match, error) {
	if !m.InProgress() {
		return m, ErrInvalidState
	}
	if len(m.History) == 0 {
		return m, ErrEmptyHistory
	}
	out := m.Clone()
	last := out.History[len(out.History)-1]
	out.History = out.History[:len(out.History)-1]
	if v := out.GameScore.At(last.Point) - 1; v > 0 {
		out.GameScore.Set(last.Point, v)
	} else {
		out.GameScore.Set(last.Point, 0)
	}
	return out, nil
}

// EndMatch marks the match completed. Calling it again overwrites EndTime.
func EndMatch(m Match, now time.Time) Match {
	out := m.Clone()
	out.Status = StatusCompleted
	end := now
	out.EndTime = &end
	return out
}
