// Package rules implements fleet placement and shot resolution.
//
// All functions mutate or inspect a *game.GameState passed in explicitly;
// randomness always comes from a caller-supplied *rand.Rand so games are
// reproducible from a seed.
package rules

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/bp-bling/BattleshipAI/game"
)

// ErrPlacementExhausted reports a fleet configuration that cannot be placed,
// either because it fails validation outright or because random placement ran
// out of attempts.
var ErrPlacementExhausted = errors.New("fleet placement exhausted")

// maxPlacementAttempts bounds the random origin draws per ship so a
// pathological configuration fails instead of spinning forever.
const maxPlacementAttempts = 10000

// DefaultShipLengths is the classic fleet: carrier, battleship, cruiser,
// submarine, destroyer.
var DefaultShipLengths = []int32{5, 4, 3, 3, 2}

// ValidateFleetConfig rejects configurations that can never be placed on a
// size x size board. All rejections wrap ErrPlacementExhausted.
func ValidateFleetConfig(size int32, lengths []int32) error {
	if size <= 0 {
		return fmt.Errorf("board size %d: %w", size, ErrPlacementExhausted)
	}
	if len(lengths) == 0 {
		return fmt.Errorf("empty fleet: %w", ErrPlacementExhausted)
	}
	var total int32
	for _, l := range lengths {
		if l <= 0 || l > size {
			return fmt.Errorf("ship length %d does not fit a %dx%d board: %w", l, size, size, ErrPlacementExhausted)
		}
		total += l
	}
	if total > size*size {
		return fmt.Errorf("fleet covers %d cells but the board has %d: %w", total, size*size, ErrPlacementExhausted)
	}
	return nil
}

// canPlace reports whether a ship of the given length fits with its origin at
// (x,y): every cell of the run must be on the board and free of other ships.
func canPlace(state *game.GameState, x, y, length int32, horizontal bool) bool {
	for i := int32(0); i < length; i++ {
		cx, cy := x, y
		if horizontal {
			cx += i
		} else {
			cy += i
		}
		if !state.InBounds(cx, cy) {
			return false
		}
		switch state.At(cx, cy) {
		case game.CellOccupied, game.CellSunk:
			return false
		}
	}
	return true
}

// CanStillOccupy reports whether a ship of the given length could, for all the
// shooter knows, occupy the run starting at (x,y). Only Miss and Sunk cells
// rule a run out: a Hit cell may belong to the very ship being considered, and
// Occupied is indistinguishable from Unknown to the targeting side.
func CanStillOccupy(state *game.GameState, x, y, length int32, horizontal bool) bool {
	for i := int32(0); i < length; i++ {
		cx, cy := x, y
		if horizontal {
			cx += i
		} else {
			cy += i
		}
		if !state.InBounds(cx, cy) {
			return false
		}
		switch state.At(cx, cy) {
		case game.CellMiss, game.CellSunk:
			return false
		}
	}
	return true
}

// PlaceFleet places one ship per entry of lengths onto the board, in order.
// Each ship draws its orientation once and keeps it across retries; only the
// origin is redrawn until canPlace accepts the run.
func PlaceFleet(state *game.GameState, lengths []int32, rng *rand.Rand) error {
	if err := ValidateFleetConfig(state.Size, lengths); err != nil {
		return err
	}

	for _, length := range lengths {
		horizontal := rng.Intn(2) == 0

		placed := false
		for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
			x := rng.Int31n(state.Size)
			y := rng.Int31n(state.Size)
			if !canPlace(state, x, y, length, horizontal) {
				continue
			}

			ship := game.Ship{Origin: game.Point{X: x, Y: y}, Length: length, Horizontal: horizontal}
			for _, p := range ship.Cells() {
				state.Set(p.X, p.Y, game.CellOccupied)
			}
			state.Ships = append(state.Ships, ship)
			state.TotalShipCells += length
			placed = true
			break
		}

		if !placed {
			return fmt.Errorf("no origin found for ship of length %d after %d attempts: %w",
				length, maxPlacementAttempts, ErrPlacementExhausted)
		}
	}

	return nil
}
