// Package selfplay runs solver games end to end: place a fleet, then fire at
// the probability field's best cell until every ship is sunk.
package selfplay

import (
	"fmt"
	"math/rand"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/game"
	"github.com/bp-bling/BattleshipAI/rules"
)

// Config describes one solver game.
type Config struct {
	BoardSize   int32
	ShipLengths []int32
	Density     density.Config
}

// DefaultConfig is the classic 10x10 game with the five-ship fleet.
func DefaultConfig() Config {
	return Config{
		BoardSize:   10,
		ShipLengths: append([]int32(nil), rules.DefaultShipLengths...),
		Density:     density.DefaultConfig(),
	}
}

// Session owns one game: the hidden fleet, the shot record and the field the
// next target is chosen from. Sessions share nothing, so any number can run
// concurrently on their own goroutines.
type Session struct {
	Config Config
	State  *game.GameState
	Field  *density.Field
}

// NewSession places a fresh fleet with the given rng and computes the initial
// field. Placement failures surface rules.ErrPlacementExhausted.
func NewSession(cfg Config, rng *rand.Rand) (*Session, error) {
	state := game.NewGameState(cfg.BoardSize)
	if err := rules.PlaceFleet(state, cfg.ShipLengths, rng); err != nil {
		return nil, err
	}
	field := density.NewField(cfg.BoardSize)
	field.Recompute(state, cfg.Density)
	return &Session{Config: cfg, State: state, Field: field}, nil
}

// ShotRecord describes one resolved shot: where it went, the score that
// earned the cell its turn, and what came back.
type ShotRecord struct {
	Index  int32
	Target game.Point
	Score  density.Score
	Result game.CellState
}

// StepOneShot fires at the best cell of the current field, then rebuilds the
// field against the updated board. Stepping a finished game returns
// rules.ErrInvalidShotTarget.
func (s *Session) StepOneShot() (ShotRecord, error) {
	if s.GameOver() {
		return ShotRecord{}, fmt.Errorf("game already won after %d shots: %w",
			s.State.ShotCount, rules.ErrInvalidShotTarget)
	}

	target, ok := density.SelectTarget(s.Field, s.State)
	if !ok {
		return ShotRecord{}, fmt.Errorf("no unresolved cells remain: %w", rules.ErrInvalidShotTarget)
	}
	score := s.Field.At(target.X, target.Y)

	result, err := rules.Fire(s.State, target.X, target.Y)
	if err != nil {
		return ShotRecord{}, err
	}
	s.Field.Recompute(s.State, s.Config.Density)

	return ShotRecord{
		Index:  s.State.ShotCount - 1,
		Target: target,
		Score:  score,
		Result: result,
	}, nil
}

// GameOver reports whether every ship cell has been hit.
func (s *Session) GameOver() bool {
	return rules.IsGameOver(s.State)
}

// CellAt returns the visible state of one cell.
func (s *Session) CellAt(x, y int32) game.CellState { return s.State.At(x, y) }

// ScoreAt returns the current field score of one cell.
func (s *Session) ScoreAt(x, y int32) density.Score { return s.Field.At(x, y) }

// Shots returns the number of resolved shots so far.
func (s *Session) Shots() int32 { return s.State.ShotCount }

// RequiredHits returns the total number of ship cells.
func (s *Session) RequiredHits() int32 { return s.State.TotalShipCells }

// RemainingShips counts the fleet members still afloat.
func (s *Session) RemainingShips() int32 {
	var n int32
	for i := range s.State.Ships {
		if !s.State.Ships[i].IsSunk() {
			n++
		}
	}
	return n
}
