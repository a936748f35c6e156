package selfplay

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bp-bling/BattleshipAI/rules"
	"github.com/bp-bling/BattleshipAI/store"
)

// GameResult summarizes one completed game.
type GameResult struct {
	GameID   string
	Seed     int64
	Shots    int32
	Duration time.Duration
}

// FormatLengths joins a fleet config the way the archive stores it: "5,4,3,3,2".
func FormatLengths(lengths []int32) string {
	parts := make([]string, 0, len(lengths))
	for _, l := range lengths {
		parts = append(parts, fmt.Sprintf("%d", l))
	}
	return strings.Join(parts, ",")
}

// ParseLengths is the inverse of FormatLengths. An empty string yields the
// classic fleet.
func ParseLengths(s string) ([]int32, error) {
	if strings.TrimSpace(s) == "" {
		out := make([]int32, len(rules.DefaultShipLengths))
		copy(out, rules.DefaultShipLengths)
		return out, nil
	}
	parts := strings.Split(s, ",")
	lengths := make([]int32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("ship length %q: %w", p, err)
		}
		lengths = append(lengths, int32(n))
	}
	if len(lengths) == 0 {
		return nil, fmt.Errorf("no ship lengths in %q", s)
	}
	return lengths, nil
}

// PlayGame runs one game to completion and returns its archive rows. The
// context is checked between shots; cancellation abandons the game and
// returns ctx.Err. onShot, when non-nil, runs after every resolved shot.
func PlayGame(ctx context.Context, workerId int, cfg Config, seed int64, onShot func()) (store.GameRow, []store.ShotRow, GameResult, error) {
	started := time.Now()
	rng := rand.New(rand.NewSource(seed))

	session, err := NewSession(cfg, rng)
	if err != nil {
		return store.GameRow{}, nil, GameResult{}, fmt.Errorf("new session: %w", err)
	}

	gameID := uuid.New().String()
	shotRows := make([]store.ShotRow, 0, 64)

	for !session.GameOver() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return store.GameRow{}, nil, GameResult{}, ctx.Err()
			default:
			}
		}

		rec, err := session.StepOneShot()
		if err != nil {
			return store.GameRow{}, nil, GameResult{}, fmt.Errorf("step: %w", err)
		}

		shotRows = append(shotRows, store.ShotRow{
			GameID:         gameID,
			ShotIdx:        rec.Index,
			X:              rec.Target.X,
			Y:              rec.Target.Y,
			Result:         rec.Result.String(),
			ScoreCount:     rec.Score.Count,
			ScoreLocked:    rec.Score.Locked,
			HitsAfter:      session.State.HitCount,
			ShipsRemaining: session.RemainingShips(),
		})

		if onShot != nil {
			onShot()
		}
	}

	duration := time.Since(started)
	gameRow := store.GameRow{
		GameID:      gameID,
		Worker:      int32(workerId),
		Seed:        seed,
		StartedNs:   started.UnixNano(),
		BoardSize:   cfg.BoardSize,
		ShipLengths: FormatLengths(cfg.ShipLengths),
		SkewEnabled: cfg.Density.SkewEnabled,
		SkewFactor:  cfg.Density.SkewFactor,
		Shots:       session.Shots(),
		Hits:        session.State.HitCount,
		DurationUs:  duration.Microseconds(),
		Source:      "selfplay",
	}

	result := GameResult{
		GameID:   gameID,
		Seed:     seed,
		Shots:    session.Shots(),
		Duration: duration,
	}
	return gameRow, shotRows, result, nil
}
