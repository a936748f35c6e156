package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/executor/selfplay"
	"github.com/bp-bling/BattleshipAI/rules"
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The viewer is a local tool; the browser UI may be served from a
	// different port than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLive plays one game live over a websocket, one frame per shot.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	seed := parseInt64Query(r, "seed", 0)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	boardSize := parseIntQuery(r, "board_size", 10)
	lengths, err := selfplay.ParseLengths(r.URL.Query().Get("ship_lengths"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rules.ValidateFleetConfig(int32(boardSize), lengths); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg := selfplay.Config{
		BoardSize:   int32(boardSize),
		ShipLengths: lengths,
		Density: density.Config{
			SkewEnabled: parseBoolQuery(r, "skew", true),
			SkewFactor:  int32(parseIntQuery(r, "skew_factor", 10)),
		},
	}
	delay := time.Duration(parseIntQuery(r, "delay_ms", 250)) * time.Millisecond

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.Warn("live upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain the connection so a client close ends the game promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	rng := rand.New(rand.NewSource(seed))
	session, err := selfplay.NewSession(cfg, rng)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return
	}
	gameID := uuid.New().String()

	for !session.GameOver() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rec, err := session.StepOneShot()
		if err != nil {
			slog.Warn("live game step failed", "seed", seed, "err", err)
			return
		}
		frame := liveFrame(session, "shot", gameID, seed)
		frame.ShotIdx = rec.Index
		frame.X = rec.Target.X
		frame.Y = rec.Target.Y
		frame.Result = rec.Result.String()
		frame.ScoreCount = rec.Score.Count
		frame.ScoreLocked = rec.Score.Locked
		if err := conn.WriteJSON(frame); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	done := liveFrame(session, "done", gameID, seed)
	done.ShotIdx = session.Shots()
	if err := conn.WriteJSON(done); err != nil {
		return
	}
	// Let the client read the final frame before the connection drops.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// liveFrame snapshots the session board and field into a wire frame.
func liveFrame(session *selfplay.Session, typ string, gameID string, seed int64) LiveFrame {
	state := session.State
	frame := LiveFrame{
		Type:           typ,
		GameID:         gameID,
		Seed:           seed,
		Cells:          make([]int32, len(state.Cells)),
		Counts:         make([]int32, len(session.Field.Scores)),
		Locked:         make([]bool, len(session.Field.Scores)),
		Hits:           state.HitCount,
		RequiredHits:   session.RequiredHits(),
		ShipsRemaining: session.RemainingShips(),
		GameOver:       session.GameOver(),
	}
	for i, c := range state.Cells {
		frame.Cells[i] = int32(c)
	}
	for i, sc := range session.Field.Scores {
		frame.Counts[i] = sc.Count
		frame.Locked[i] = sc.Locked
	}
	return frame
}
