package main

import "encoding/json"

// GameSummary is one game in the games list.
type GameSummary struct {
	GameID      string `json:"game_id"`
	Worker      int32  `json:"worker"`
	Seed        int64  `json:"seed"`
	StartedNs   int64  `json:"started_ns"`
	BoardSize   int32  `json:"board_size"`
	ShipLengths string `json:"ship_lengths"`
	SkewEnabled bool   `json:"skew_enabled"`
	SkewFactor  int32  `json:"skew_factor"`
	Shots       int32  `json:"shots"`
	Hits        int32  `json:"hits"`
	DurationUs  int64  `json:"duration_us"`
	Source      string `json:"source"`
	SourceFile  string `json:"file"`
}

// GamesResponse is the paginated response for the /api/games endpoint.
type GamesResponse struct {
	Total int64         `json:"total"`
	Games []GameSummary `json:"games"`
}

// ShotView is one resolved shot for the /api/games/{id}/shots endpoint.
type ShotView struct {
	ShotIdx        int32  `json:"shot_idx"`
	X              int32  `json:"x"`
	Y              int32  `json:"y"`
	Result         string `json:"result"`
	ScoreCount     int32  `json:"score_count"`
	ScoreLocked    bool   `json:"score_locked"`
	HitsAfter      int32  `json:"hits_after"`
	ShipsRemaining int32  `json:"ships_remaining"`
}

// HistogramBucket counts games that ended at exactly Shots shots.
type HistogramBucket struct {
	Shots int32 `json:"shots"`
	Games int64 `json:"games"`
}

// StatsResponse is the response for the /api/stats endpoint.
type StatsResponse struct {
	Games       int64             `json:"games"`
	MeanShots   float64           `json:"mean_shots"`
	MedianShots float64           `json:"median_shots"`
	MinShots    int32             `json:"min_shots"`
	MaxShots    int32             `json:"max_shots"`
	TotalHits   int64             `json:"total_hits"`
	Histogram   []HistogramBucket `json:"histogram"`
}

// Point represents a board coordinate.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// AdviseRequest carries a mid-game board for the /api/advise endpoint.
// Cells holds row-major cell states (0 unknown, 1 occupied, 2 miss, 3 hit,
// 4 sunk); RemainingLengths lists the ships not yet sunk.
type AdviseRequest struct {
	BoardSize        int32   `json:"board_size"`
	Cells            []int32 `json:"cells"`
	RemainingLengths []int32 `json:"remaining_lengths"`
	SkewEnabled      *bool   `json:"skew_enabled,omitempty"`
	SkewFactor       int32   `json:"skew_factor,omitempty"`
}

// AdviseResponse returns the recomputed field plus the cell the solver would
// fire at next. HasTarget is false when every cell is already resolved.
type AdviseResponse struct {
	HasTarget bool    `json:"has_target"`
	Target    *Point  `json:"target,omitempty"`
	Counts    []int32 `json:"counts"`
	Locked    []bool  `json:"locked"`
}

// ReplayGameInfo is one archived game in the /api/replay list.
type ReplayGameInfo struct {
	GameID      string `json:"game_id"`
	Seed        int64  `json:"seed"`
	BoardSize   int32  `json:"board_size"`
	ShipLengths string `json:"ship_lengths"`
	Shots       int32  `json:"shots"`
	CreatedAt   string `json:"created_at"`
}

// ReplayResponse bundles an archived game with its frames. Frames pass
// through as raw JSON exactly as the tracer emitted them.
type ReplayResponse struct {
	ReplayGameInfo
	Frames []json.RawMessage `json:"frames"`
}

// LiveFrame is one websocket message on /api/live: the shot that just
// resolved, the board after it, and the field the next shot will be chosen
// from. A final message with Type "done" closes the game.
type LiveFrame struct {
	Type           string  `json:"type"`
	GameID         string  `json:"game_id"`
	Seed           int64   `json:"seed"`
	ShotIdx        int32   `json:"shot_idx"`
	X              int32   `json:"x"`
	Y              int32   `json:"y"`
	Result         string  `json:"result"`
	ScoreCount     int32   `json:"score_count"`
	ScoreLocked    bool    `json:"score_locked"`
	Cells          []int32 `json:"cells"`
	Counts         []int32 `json:"counts"`
	Locked         []bool  `json:"locked"`
	Hits           int32   `json:"hits"`
	RequiredHits   int32   `json:"required_hits"`
	ShipsRemaining int32   `json:"ships_remaining"`
	GameOver       bool    `json:"game_over"`
}

// DebugGameSummary lists one traced game for the /api/debug_games endpoint.
type DebugGameSummary struct {
	GameID    string `json:"game_id"`
	BoardSize int32  `json:"board_size"`
	ShotCount int    `json:"shot_count"`
	FileName  string `json:"file_name"`
}

// DebugShotView is one traced shot with the solver's full view: the board
// after the shot and the field the target was chosen from.
type DebugShotView struct {
	ShotIdx     int32   `json:"shot_idx"`
	X           int32   `json:"x"`
	Y           int32   `json:"y"`
	Result      string  `json:"result"`
	ScoreCount  int32   `json:"score_count"`
	ScoreLocked bool    `json:"score_locked"`
	ShotsAfter  int32   `json:"shots_after"`
	HitsAfter   int32   `json:"hits_after"`
	GameOver    bool    `json:"game_over"`
	Cells       []int32 `json:"cells"`
	Counts      []int32 `json:"counts"`
	Locked      []bool  `json:"locked"`
}

// DebugGameResponse is the full trace for the /api/debug_games/{id} endpoint.
type DebugGameResponse struct {
	GameID    string          `json:"game_id"`
	BoardSize int32           `json:"board_size"`
	ShotCount int             `json:"shot_count"`
	Shots     []DebugShotView `json:"shots"`
}
