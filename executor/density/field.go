// Package density maintains the probability field that drives targeting.
//
// The field holds one Score per board cell and is rebuilt from scratch after
// every shot: enumerate all placements of the unsunk ships that remain
// consistent with the shot record, count them per cell, then skew the counts
// around open hits. Rebuilding rather than patching keeps the field a pure
// function of the visible board, so replays and live queries always agree.
package density

import (
	"github.com/bp-bling/BattleshipAI/game"
	"github.com/bp-bling/BattleshipAI/rules"
)

// Config holds the field tuning knobs.
type Config struct {
	// SkewEnabled toggles the hit-adjacency pass.
	SkewEnabled bool
	// SkewFactor multiplies the count of cells next to an open hit.
	SkewFactor int32
}

// DefaultConfig is the classic solver tuning.
func DefaultConfig() Config {
	return Config{SkewEnabled: true, SkewFactor: 10}
}

// Field is the per-cell score map for one game. Scores share the board's
// row-major indexing.
type Field struct {
	Size   int32
	Scores []Score
}

func NewField(size int32) *Field {
	return &Field{
		Size:   size,
		Scores: make([]Score, size*size),
	}
}

// At returns the score of cell (x,y). Out-of-range coordinates panic, same as
// the board accessors.
func (f *Field) At(x, y int32) Score {
	f.mustInBounds(x, y)
	return f.Scores[y*f.Size+x]
}

func (f *Field) mustInBounds(x, y int32) {
	if x < 0 || x >= f.Size || y < 0 || y >= f.Size {
		panic("density: field coordinate out of range")
	}
}

// Recompute rebuilds every score from the current board. The result depends
// only on the visible cell states and the unsunk ship lengths, so calling it
// twice in a row yields the same field.
func (f *Field) Recompute(state *game.GameState, cfg Config) {
	for i := range f.Scores {
		f.Scores[i] = Score{}
	}

	for i := range state.Ships {
		ship := &state.Ships[i]
		if ship.IsSunk() {
			continue
		}
		f.countPlacements(state, ship.Length)
	}

	if cfg.SkewEnabled {
		f.applySkew(state, cfg.SkewFactor)
	}
}

// countPlacements adds one to every cell of every surviving placement of a
// ship of the given length, trying both orientations from every origin.
func (f *Field) countPlacements(state *game.GameState, length int32) {
	for y := int32(0); y < state.Size; y++ {
		for x := int32(0); x < state.Size; x++ {
			for _, horizontal := range [2]bool{true, false} {
				if !rules.CanStillOccupy(state, x, y, length, horizontal) {
					continue
				}
				for i := int32(0); i < length; i++ {
					cx, cy := x, y
					if horizontal {
						cx += i
					} else {
						cy += i
					}
					f.Scores[cy*f.Size+cx].Count++
				}
			}
		}
	}
}

var neighbourDirs = [4]game.Point{
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 1, Y: 0},
}

// applySkew walks every Hit cell's four neighbours. A non-Hit neighbour has
// its count multiplied, since a damaged ship extends into adjacent cells. A
// Hit neighbour means two hits line up; the cells just past both ends of that
// hit run are locked, because the only way to finish the ship is along the
// line.
func (f *Field) applySkew(state *game.GameState, factor int32) {
	for y := int32(0); y < state.Size; y++ {
		for x := int32(0); x < state.Size; x++ {
			if state.At(x, y) != game.CellHit {
				continue
			}
			for _, d := range neighbourDirs {
				nx, ny := x+d.X, y+d.Y
				if !state.InBounds(nx, ny) {
					continue
				}
				if state.At(nx, ny) == game.CellHit {
					f.lockRunEnds(state, x, y, d)
					continue
				}
				sc := &f.Scores[ny*f.Size+nx]
				if !sc.Locked {
					sc.Count *= factor
				}
			}
		}
	}
}

// lockRunEnds follows the consecutive hits through (x,y) along d and its
// opposite, then locks the first non-Hit cell past each end if it is still on
// the board. Locks are never cleared within a pass, so a cell locked from one
// hit pair keeps its rank regardless of later multiplications.
func (f *Field) lockRunEnds(state *game.GameState, x, y int32, d game.Point) {
	nx, ny := x+d.X, y+d.Y
	for state.InBounds(nx, ny) && state.At(nx, ny) == game.CellHit {
		nx += d.X
		ny += d.Y
	}
	if state.InBounds(nx, ny) {
		f.Scores[ny*f.Size+nx].Locked = true
	}

	px, py := x, y
	for state.InBounds(px, py) && state.At(px, py) == game.CellHit {
		px -= d.X
		py -= d.Y
	}
	if state.InBounds(px, py) {
		f.Scores[py*f.Size+px].Locked = true
	}
}
