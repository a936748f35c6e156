package selfplay

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/bp-bling/BattleshipAI/store"
)

// DebugProgress is passed to the onShot callback after each shot of a debug
// game, with the live session so callers can render it.
type DebugProgress struct {
	Session *Session
	Record  ShotRecord
}

// DebugGameResult holds everything captured from one debug game.
type DebugGameResult struct {
	GameID string
	Seed   int64
	Shots  int32
	Rows   []store.DebugShotRow
}

// PlayDebugGame runs one game while capturing the full solver view per shot:
// the field the target was chosen from and the board after the shot resolved.
// The rows are ready for store.WriteDebugGameParquet.
func PlayDebugGame(ctx context.Context, cfg Config, seed int64, onShot func(DebugProgress)) (*DebugGameResult, error) {
	rng := rand.New(rand.NewSource(seed))
	session, err := NewSession(cfg, rng)
	if err != nil {
		return nil, err
	}

	gameID := uuid.New().String()
	rows := make([]store.DebugShotRow, 0, 64)

	for !session.GameOver() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		// Snapshot the field before stepping: this is what the next target
		// is chosen from.
		snap := store.FieldSnapshot{
			Counts: make([]int32, len(session.Field.Scores)),
			Locked: make([]bool, len(session.Field.Scores)),
		}
		for i, sc := range session.Field.Scores {
			snap.Counts[i] = sc.Count
			snap.Locked[i] = sc.Locked
		}
		fieldJSON, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("marshal field snapshot: %w", err)
		}

		rec, err := session.StepOneShot()
		if err != nil {
			return nil, fmt.Errorf("step: %w", err)
		}

		cells := make([]int32, len(session.State.Cells))
		for i, c := range session.State.Cells {
			cells[i] = int32(c)
		}

		rows = append(rows, store.DebugShotRow{
			GameID:      gameID,
			ShotIdx:     rec.Index,
			BoardSize:   cfg.BoardSize,
			X:           rec.Target.X,
			Y:           rec.Target.Y,
			Result:      rec.Result.String(),
			ScoreCount:  rec.Score.Count,
			ScoreLocked: rec.Score.Locked,
			ShotsAfter:  session.Shots(),
			HitsAfter:   session.State.HitCount,
			GameOver:    session.GameOver(),
			Cells:       cells,
			FieldJSON:   fieldJSON,
		})

		if onShot != nil {
			onShot(DebugProgress{Session: session, Record: rec})
		}
	}

	return &DebugGameResult{
		GameID: gameID,
		Seed:   seed,
		Shots:  session.Shots(),
		Rows:   rows,
	}, nil
}
