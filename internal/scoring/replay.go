package scoring

// Consistency compares the cached projection of a match with a full replay of its history.
type Consistency struct {
	MatchID           string `json:"match_id"`
	Consistent        bool   `json:"consistent"`
	Events            int    `json:"events"`
	CachedSets        []Pair `json:"cached_sets"`
	CachedGameScore   Pair   `json:"cached_game_score"`
	ReplayedSets      []Pair `json:"replayed_sets"`
	ReplayedGameScore Pair   `json:"replayed_game_score"`
}

// Replay folds the history of m through ApplyPoint starting from a fresh match.
// Status and timestamps of m are carried over unchanged.
func Replay(m Match) Match {
	out := Match{
		ID:        m.ID,
		Players:   m.Players,
		Sets:      []Pair{{}},
		History:   []PointEvent{},
		Status:    StatusInProgress,
		StartTime: m.StartTime,
	}
	for _, ev := range m.History {
		next, err := ApplyPoint(out, ev.Point, ev.Time)
		if err != nil {
			// invalid sides in a stored log are skipped, not fatal
			continue
		}
		out = next
	}
	res := m.Clone()
	res.Sets = out.Sets
	res.GameScore = out.GameScore
	res.History = out.History
	return res
}

// CheckConsistency reports whether Sets/GameScore still equal the replay of History.
// Undoing a point that closed a game leaves them diverged; this only reports it.
func CheckConsistency(m Match) Consistency {
	r := Replay(m)
	return Consistency{
		MatchID:           m.ID,
		Consistent:        equalSets(m.Sets, r.Sets) && m.GameScore == r.GameScore,
		Events:            len(m.History),
		CachedSets:        append([]Pair(nil), m.Sets...),
		CachedGameScore:   m.GameScore,
		ReplayedSets:      r.Sets,
		ReplayedGameScore: r.GameScore,
	}
}

func equalSets(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
