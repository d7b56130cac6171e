package scoring

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestMatch(t *testing.T) Match {
	t.Helper()
	m, err := StartMatch("m1", []string{"A", "B"}, t0)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	return m
}

func play(t *testing.T, m Match, sides ...Side) Match {
	t.Helper()
	for i, s := range sides {
		next, err := ApplyPoint(m, s, t0.Add(time.Duration(len(m.History)+1)*time.Second))
		if err != nil {
			t.Fatalf("ApplyPoint #%d side=%d: %v", i, s, err)
		}
		m = next
	}
	return m
}

func winGames(t *testing.T, m Match, side Side, n int) Match {
	t.Helper()
	for i := 0; i < n; i++ {
		m = play(t, m, side, side, side, side)
	}
	return m
}

func TestStartMatch(t *testing.T) {
	m := newTestMatch(t)
	if m.Status != StatusInProgress {
		t.Fatalf("status = %q", m.Status)
	}
	if len(m.Sets) != 1 || m.Sets[0] != (Pair{}) {
		t.Fatalf("sets = %v", m.Sets)
	}
	if m.GameScore != (Pair{}) || len(m.History) != 0 {
		t.Fatalf("unexpected initial score %v history %d", m.GameScore, len(m.History))
	}
	if !m.StartTime.Equal(t0) || m.EndTime != nil {
		t.Fatalf("timestamps: start=%v end=%v", m.StartTime, m.EndTime)
	}
	if m.Players != [2]string{"A", "B"} {
		t.Fatalf("players = %v", m.Players)
	}
}

func TestStartMatchRejectsBadInput(t *testing.T) {
	cases := []struct {
		id      string
		players []string
		want    error
	}{
		{"", []string{"A", "B"}, ErrInvalidID},
		{"m", []string{"A"}, ErrInvalidPlayers},
		{"m", []string{"A", "B", "C"}, ErrInvalidPlayers},
		{"m", []string{"A", "  "}, ErrInvalidPlayers},
	}
	for _, tc := range cases {
		if _, err := StartMatch(tc.id, tc.players, t0); !errors.Is(err, tc.want) {
			t.Fatalf("StartMatch(%q, %v) err = %v, want %v", tc.id, tc.players, err, tc.want)
		}
	}
}

func TestPointsWithinGameTrackRawCounts(t *testing.T) {
	m := play(t, newTestMatch(t), Side0, Side1, Side0, Side1, Side1)
	if m.GameScore != (Pair{Side0: 2, Side1: 3}) {
		t.Fatalf("game score = %v", m.GameScore)
	}
	if len(m.History) != 5 {
		t.Fatalf("history = %d", len(m.History))
	}
	if m.History[4].Point != Side1 || !m.History[4].Time.Equal(t0.Add(5*time.Second)) {
		t.Fatalf("last event = %+v", m.History[4])
	}
}

func TestFourStraightPointsWinGame(t *testing.T) {
	m := play(t, newTestMatch(t), Side0, Side0, Side0, Side0)
	if m.GameScore != (Pair{}) {
		t.Fatalf("game score = %v, want reset", m.GameScore)
	}
	if len(m.Sets) != 1 || m.Sets[0] != (Pair{Side0: 1}) {
		t.Fatalf("sets = %v, want [[1,0]]", m.Sets)
	}
}

func TestGameWonAgainstTwoPoints(t *testing.T) {
	m := play(t, newTestMatch(t), Side1, Side1, Side0, Side1, Side1)
	if m.GameScore != (Pair{}) || m.Sets[0] != (Pair{Side1: 1}) {
		t.Fatalf("score=%v sets=%v", m.GameScore, m.Sets)
	}
}

func TestDeuceClampAndAdvantage(t *testing.T) {
	m := play(t, newTestMatch(t), Side0, Side1, Side0, Side1, Side0, Side1)
	if m.GameScore != (Pair{Side0: 3, Side1: 3}) {
		t.Fatalf("at 3-3 got %v", m.GameScore)
	}
	m = play(t, m, Side0)
	if m.GameScore != (Pair{Side0: 4, Side1: 3}) {
		t.Fatalf("advantage: got %v, want 4-3", m.GameScore)
	}
	m = play(t, m, Side1)
	if m.GameScore != (Pair{Side0: 3, Side1: 3}) {
		t.Fatalf("4-4 should clamp to 3-3, got %v", m.GameScore)
	}
	m = play(t, m, Side0)
	if m.GameScore != (Pair{Side0: 4, Side1: 3}) {
		t.Fatalf("got %v, want 4-3", m.GameScore)
	}
	if m.Sets[0] != (Pair{}) {
		t.Fatalf("game must not conclude at 4-3, sets=%v", m.Sets)
	}
	m = play(t, m, Side0)
	if m.GameScore != (Pair{}) {
		t.Fatalf("fifth point should win the game, got %v", m.GameScore)
	}
	if m.Sets[0] != (Pair{Side0: 1}) {
		t.Fatalf("sets = %v", m.Sets)
	}
	if len(m.History) != 10 {
		t.Fatalf("history = %d, want 10", len(m.History))
	}
}

func TestSetClosesOnlyWithTwoGameMargin(t *testing.T) {
	m := newTestMatch(t)
	m = winGames(t, m, Side0, 5)
	m = winGames(t, m, Side1, 5)
	m = winGames(t, m, Side0, 1)
	if len(m.Sets) != 1 || m.Sets[0] != (Pair{Side0: 6, Side1: 5}) {
		t.Fatalf("6-5 must keep the set open, sets=%v", m.Sets)
	}
	m = winGames(t, m, Side0, 1)
	if len(m.Sets) != 2 {
		t.Fatalf("7-5 should open a new set, sets=%v", m.Sets)
	}
	if m.Sets[0] != (Pair{Side0: 7, Side1: 5}) || m.Sets[1] != (Pair{}) {
		t.Fatalf("sets = %v", m.Sets)
	}
}

func TestSecondSetNeverClosesUnderPriorSetGuard(t *testing.T) {
	m := winGames(t, newTestMatch(t), Side0, 6)
	if len(m.Sets) != 2 {
		t.Fatalf("first set should close at 6-0, sets=%v", m.Sets)
	}
	m = winGames(t, m, Side1, 8)
	if len(m.Sets) != 2 {
		t.Fatalf("guard should keep the second set open, sets=%v", m.Sets)
	}
	if m.Sets[1] != (Pair{Side1: 8}) {
		t.Fatalf("second set = %v", m.Sets[1])
	}
}

func TestApplyPointRejectsInvalidSide(t *testing.T) {
	m := newTestMatch(t)
	for _, s := range []Side{-1, 2} {
		if _, err := ApplyPoint(m, s, t0); !errors.Is(err, ErrInvalidSide) {
			t.Fatalf("side %d: err = %v", s, err)
		}
	}
}

func TestApplyPointDoesNotMutateInput(t *testing.T) {
	m := play(t, newTestMatch(t), Side0, Side0, Side0)
	before := m.Clone()
	next := play(t, m, Side0)
	if m.GameScore != before.GameScore || len(m.History) != 3 || m.Sets[0] != before.Sets[0] {
		t.Fatalf("input mutated: %+v", m)
	}
	if next.Sets[0] != (Pair{Side0: 1}) {
		t.Fatalf("next sets = %v", next.Sets)
	}
}

func TestUndoDecrementsLastSide(t *testing.T) {
	m := play(t, newTestMatch(t), Side1, Side0, Side1)
	u, err := UndoLastPoint(m)
	if err != nil {
		t.Fatalf("UndoLastPoint: %v", err)
	}
	if u.GameScore != (Pair{Side0: 1, Side1: 1}) {
		t.Fatalf("game score = %v", u.GameScore)
	}
	if len(u.History) != 2 || len(m.History) != 3 {
		t.Fatalf("history after=%d before=%d", len(u.History), len(m.History))
	}
}

func TestUndoAfterGameWinLeavesSetsDrifted(t *testing.T) {
	m := play(t, newTestMatch(t), Side0, Side0, Side0, Side0)
	u, err := UndoLastPoint(m)
	if err != nil {
		t.Fatalf("UndoLastPoint: %v", err)
	}
	if u.GameScore != (Pair{}) {
		t.Fatalf("game score should floor at 0, got %v", u.GameScore)
	}
	if len(u.Sets) != 1 || u.Sets[0] != (Pair{Side0: 1}) {
		t.Fatalf("set rollover must not be reversed, sets=%v", u.Sets)
	}
	if len(u.History) != 3 {
		t.Fatalf("history = %d", len(u.History))
	}
	c := CheckConsistency(u)
	if c.Consistent {
		t.Fatalf("expected drift to be reported: %+v", c)
	}
	if c.ReplayedGameScore != (Pair{Side0: 3}) || c.ReplayedSets[0] != (Pair{}) {
		t.Fatalf("replay = %v %v", c.ReplayedSets, c.ReplayedGameScore)
	}
}

func TestUndoAfterSetRolloverKeepsNewSet(t *testing.T) {
	m := winGames(t, newTestMatch(t), Side1, 6)
	u, err := UndoLastPoint(m)
	if err != nil {
		t.Fatalf("UndoLastPoint: %v", err)
	}
	if len(u.Sets) != 2 || u.Sets[0] != (Pair{Side1: 6}) {
		t.Fatalf("sets = %v", u.Sets)
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	_, err := UndoLastPoint(newTestMatch(t))
	if !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("err = %v, want ErrEmptyHistory", err)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ErrEmptyHistory should classify as ErrInvalidState")
	}
}

func TestEndMatchIsTerminal(t *testing.T) {
	m := play(t, newTestMatch(t), Side0)
	end := t0.Add(time.Hour)
	done := EndMatch(m, end)
	if done.Status != StatusCompleted || done.EndTime == nil || !done.EndTime.Equal(end) {
		t.Fatalf("end state = %+v", done)
	}
	if m.Status != StatusInProgress {
		t.Fatalf("input mutated by EndMatch")
	}
	if _, err := ApplyPoint(done, Side0, end); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ApplyPoint after end: err = %v", err)
	}
	_, err := UndoLastPoint(done)
	if !errors.Is(err, ErrInvalidState) || errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("UndoLastPoint after end: err = %v", err)
	}
}

func TestEndMatchTwiceOverwritesEndTime(t *testing.T) {
	first := EndMatch(newTestMatch(t), t0.Add(time.Hour))
	second := EndMatch(first, t0.Add(2*time.Hour))
	if !second.EndTime.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("end time = %v", second.EndTime)
	}
	if !first.EndTime.Equal(t0.Add(time.Hour)) {
		t.Fatalf("first record end time changed")
	}
}

func TestReplayMatchesCacheWithoutUndo(t *testing.T) {
	m := newTestMatch(t)
	m = winGames(t, m, Side0, 6)
	m = play(t, m, Side1, Side0, Side1, Side0, Side1, Side0, Side1, Side1, Side0, Side1, Side1)
	c := CheckConsistency(m)
	if !c.Consistent {
		t.Fatalf("cache should match replay: %+v", c)
	}
	if c.Events != len(m.History) {
		t.Fatalf("events = %d", c.Events)
	}
}

func TestParsePairRoundTrip(t *testing.T) {
	for _, p := range []Pair{{}, {Side0: 4, Side1: 3}, {Side0: 12, Side1: 0}} {
		got, err := ParsePair(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePair(%q) = %v, %v", p.String(), got, err)
		}
	}
	for _, bad := range []string{"", "3", "x-1", "1-y", "-1-2"} {
		if _, err := ParsePair(bad); err == nil {
			t.Fatalf("ParsePair(%q) should fail", bad)
		}
	}
}
