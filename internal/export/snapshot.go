package export

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/park285/padel-scoreboard/internal/scoring"
)

// Snapshot is the read-only export shape of a match.
type Snapshot struct {
	MatchID          string               `json:"match_id"`
	Players          [2]string            `json:"players"`
	Score            Score                `json:"score"`
	CurrentGameScore string               `json:"current_game_score"`
	Events           []scoring.PointEvent `json:"events"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          *time.Time           `json:"end_time"`
	Status           scoring.Status       `json:"status"`

	// Version is the store version the snapshot was taken at. It orders
	// live feed frames and is not part of the exported document.
	Version int64 `json:"-"`
}

type Score struct {
	Sets []scoring.Pair `json:"sets"`
}

// FromMatch builds the snapshot for m. Slices are copied.
func FromMatch(m *scoring.Match) *Snapshot {
	if m == nil {
		return nil
	}
	c := m.Clone()
	return &Snapshot{
		MatchID:          c.ID,
		Players:          c.Players,
		Score:            Score{Sets: c.Sets},
		CurrentGameScore: c.GameScore.String(),
		Events:           c.History,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
		Status:           c.Status,
		Version:          c.Version,
	}
}

// ObjectKey is the deterministic file/object name for a match export.
// Ids that are already slug-safe (generated UUIDs) are used as-is. Any other id
// gets a short hash of the raw id appended, since slugging folds case and
// transliterates and would otherwise map distinct ids onto one key.
func ObjectKey(matchID string) string {
	raw := strings.TrimSpace(matchID)
	id := slug.Make(raw)
	if id == "" {
		id = "unnamed"
	}
	if id != raw {
		sum := sha256.Sum256([]byte(raw))
		id += "-" + hex.EncodeToString(sum[:4])
	}
	return "match_" + id + ".json"
}
