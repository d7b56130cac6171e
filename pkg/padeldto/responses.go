package padeldto

import "time"

type StartMatchResponse struct {
	MatchID string `json:"match_id"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type EndMatchResponse struct {
	Status     string `json:"status"`
	ExportedTo string `json:"exported_to"`
}

type PointView struct {
	Point int       `json:"point"`
	Time  time.Time `json:"time"`
}

// MatchView is the GET /match/{id} body. Pairs are [side0, side1].
type MatchView struct {
	Players   [2]string   `json:"players"`
	Sets      [][2]int    `json:"sets"`
	GameScore [2]int      `json:"game_score"`
	History   []PointView `json:"history"`
	Status    string      `json:"status"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time"`
}
