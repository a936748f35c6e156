package density

import "github.com/bp-bling/BattleshipAI/game"

// SelectTarget returns the unresolved cell with the strictly greatest score.
// Cells are scanned in raster order (row by row, left to right) and ties keep
// the earlier candidate, so the choice is deterministic for a given field.
// ok is false only when every cell on the board has been resolved.
func SelectTarget(f *Field, state *game.GameState) (game.Point, bool) {
	var best game.Point
	var bestScore Score
	found := false

	for y := int32(0); y < state.Size; y++ {
		for x := int32(0); x < state.Size; x++ {
			if state.At(x, y).Resolved() {
				continue
			}
			sc := f.At(x, y)
			if !found || sc.Exceeds(bestScore) {
				best = game.Point{X: x, Y: y}
				bestScore = sc
				found = true
			}
		}
	}

	return best, found
}
