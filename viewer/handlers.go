package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/game"
	"github.com/bp-bling/BattleshipAI/replay"
)

// Server holds shared state for HTTP handlers.
type Server struct {
	roots    []string
	dbCache  *DBCache
	debugDir string
	archive  *replay.DB
}

// NewServer creates a Server over the given data roots. archive may be nil
// when no replay database is configured.
func NewServer(roots []string, debugDir string, archive *replay.DB, refresh time.Duration) *Server {
	return &Server{
		roots:    roots,
		dbCache:  NewDBCache(roots, refresh),
		debugDir: debugDir,
		archive:  archive,
	}
}

// Close releases the cached DuckDB handle.
func (s *Server) Close() {
	s.dbCache.Close()
}

// RegisterRoutes sets up all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/api/games/", s.handleGameShots)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/advise", s.handleAdvise)
	mux.HandleFunc("/api/replay", s.handleReplayList)
	mux.HandleFunc("/api/replay/", s.handleReplay)
	mux.HandleFunc("/api/debug_games", s.handleDebugGamesList)
	mux.HandleFunc("/api/debug_games/", s.handleDebugGame)
	mux.HandleFunc("/api/live", s.handleLive)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	limit := parseIntQuery(r, "limit", 200)
	offset := parseIntQuery(r, "offset", 0)
	sortKey := strings.TrimSpace(r.URL.Query().Get("sort"))
	sortDir := strings.TrimSpace(r.URL.Query().Get("dir"))

	total, err := queryGamesTotal(r.Context(), db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	games, err := queryGames(r.Context(), db, s.roots, limit, offset, sortKey, sortDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, GamesResponse{Total: total, Games: games})
}

func (s *Server) handleGameShots(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// /api/games/{id}/shots
	rest := strings.TrimPrefix(r.URL.Path, "/api/games/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "shots" {
		http.NotFound(w, r)
		return
	}
	gameID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}
	shots, err := queryShots(r.Context(), db, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, shots)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats, err := queryStats(r.Context(), db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleAdvise(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AdviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	resp, err := adviseTarget(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

// adviseTarget recomputes the probability field for an arbitrary board and
// returns the cell the solver would fire at next.
func adviseTarget(req AdviseRequest) (AdviseResponse, error) {
	size := req.BoardSize
	if size < 1 {
		return AdviseResponse{}, fmt.Errorf("board_size must be at least 1")
	}
	if int64(len(req.Cells)) != int64(size)*int64(size) {
		return AdviseResponse{}, fmt.Errorf("cells must hold %d values, got %d", int64(size)*int64(size), len(req.Cells))
	}
	if len(req.RemainingLengths) == 0 {
		return AdviseResponse{}, fmt.Errorf("remaining_lengths must not be empty")
	}

	state := game.NewGameState(size)
	for i, v := range req.Cells {
		if v < 0 || v > int32(game.CellSunk) {
			return AdviseResponse{}, fmt.Errorf("cell %d: invalid state %d", i, v)
		}
		state.Cells[i] = game.CellState(v)
	}
	for _, l := range req.RemainingLengths {
		if l < 1 || l > size {
			return AdviseResponse{}, fmt.Errorf("ship length %d does not fit a %dx%d board", l, size, size)
		}
		// Position-less ships are enough here: the field only reads ship
		// lengths and sunk flags.
		state.Ships = append(state.Ships, game.Ship{Length: l})
	}

	cfg := density.DefaultConfig()
	if req.SkewEnabled != nil {
		cfg.SkewEnabled = *req.SkewEnabled
	}
	if req.SkewFactor > 0 {
		cfg.SkewFactor = req.SkewFactor
	}

	field := density.NewField(size)
	field.Recompute(state, cfg)

	resp := AdviseResponse{
		Counts: make([]int32, len(req.Cells)),
		Locked: make([]bool, len(req.Cells)),
	}
	for i := range field.Scores {
		resp.Counts[i] = field.Scores[i].Count
		resp.Locked[i] = field.Scores[i].Locked
	}
	if target, ok := density.SelectTarget(field, state); ok {
		resp.HasTarget = true
		resp.Target = &Point{X: target.X, Y: target.Y}
	}
	return resp, nil
}

func (s *Server) handleReplayList(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		http.Error(w, "replay archive not configured", http.StatusServiceUnavailable)
		return
	}

	limit := parseIntQuery(r, "limit", 100)
	games, err := s.archive.ListGames(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]ReplayGameInfo, 0, len(games))
	for _, g := range games {
		out = append(out, replayGameInfo(g))
	}
	writeJSON(w, out)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		http.Error(w, "replay archive not configured", http.StatusServiceUnavailable)
		return
	}

	// /api/replay/{id}
	rest := strings.TrimPrefix(r.URL.Path, "/api/replay/")
	gameID, err := url.PathUnescape(rest)
	if err != nil || gameID == "" {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}

	g, err := s.archive.GetGame(gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	frames, err := s.archive.GetGameFrames(gameID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := ReplayResponse{ReplayGameInfo: replayGameInfo(g)}
	resp.Frames = make([]json.RawMessage, 0, len(frames))
	for _, f := range frames {
		resp.Frames = append(resp.Frames, json.RawMessage(f.Payload))
	}
	writeJSON(w, resp)
}

func replayGameInfo(g replay.Game) ReplayGameInfo {
	return ReplayGameInfo{
		GameID:      g.ID,
		Seed:        g.Seed,
		BoardSize:   g.BoardSize,
		ShipLengths: g.ShipLengths,
		Shots:       g.Shots,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
}

// handleDebugGamesList returns a list of available traced games.
func (s *Server) handleDebugGamesList(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	games, err := listDebugGames(s.debugDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, games)
}

// handleDebugGame returns the full trace of one debug game.
func (s *Server) handleDebugGame(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// /api/debug_games/{game_id}
	rest := strings.TrimPrefix(r.URL.Path, "/api/debug_games/")
	gameID, err := url.PathUnescape(rest)
	if err != nil || gameID == "" {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}

	gameData, err := loadDebugGame(s.debugDir, gameID)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, gameData)
}
