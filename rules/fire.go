package rules

import (
	"errors"
	"fmt"

	"github.com/bp-bling/BattleshipAI/game"
)

// ErrInvalidShotTarget reports a shot at a cell that was already resolved.
var ErrInvalidShotTarget = errors.New("invalid shot target")

// Fire resolves one shot at (x,y) and returns the cell's new state: Miss,
// Hit, or Sunk when this hit finished a ship. Shooting a Miss, Hit or Sunk
// cell returns ErrInvalidShotTarget and changes nothing.
//
// A finishing hit flips every cell of the ship to Sunk in the same call, so
// callers never observe a fully-hit ship that is not yet sunk.
func Fire(state *game.GameState, x, y int32) (game.CellState, error) {
	current := state.At(x, y)
	if current.Resolved() {
		return current, fmt.Errorf("cell (%d,%d) already %s: %w", x, y, current, ErrInvalidShotTarget)
	}

	state.ShotCount++

	if current != game.CellOccupied {
		state.Set(x, y, game.CellMiss)
		return game.CellMiss, nil
	}

	state.Set(x, y, game.CellHit)
	state.HitCount++

	ship := state.ShipAt(x, y)
	if ship == nil {
		panic(fmt.Sprintf("rules: occupied cell (%d,%d) has no owning ship", x, y))
	}
	ship.Hits++

	if !ship.IsSunk() {
		return game.CellHit, nil
	}

	for _, p := range ship.Cells() {
		state.Set(p.X, p.Y, game.CellSunk)
	}
	return game.CellSunk, nil
}

// IsGameOver reports whether every ship cell has been hit.
func IsGameOver(state *game.GameState) bool {
	return state.TotalShipCells > 0 && state.HitCount >= state.TotalShipCells
}
