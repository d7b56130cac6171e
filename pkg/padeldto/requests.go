package padeldto

type StartMatchRequest struct {
	Players []string `json:"players"`
}

// PointRequest.Player is a pointer so a missing field is distinguishable from side 0.
type PointRequest struct {
	MatchID string `json:"match_id"`
	Player  *int   `json:"player"`
}

type MatchIDRequest struct {
	MatchID string `json:"match_id"`
}
