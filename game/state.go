// Package game defines the core state types for the Battleship solver.
//
// These types represent the minimal state needed for placement, firing and
// probability-field evaluation. The state is designed to be cheaply clonable
// so workers and debug captures can snapshot games mid-flight.
package game

import "fmt"

// CellState is the lifecycle of a single board cell.
//
// Occupied means a ship covers the cell but it has not been shot yet; the
// targeting side must treat it exactly like Unknown. Hit cells belong to a
// ship that still floats. Once every cell of a ship is hit, all of its cells
// become Sunk together.
type CellState uint8

const (
	CellUnknown CellState = iota
	CellOccupied
	CellMiss
	CellHit
	CellSunk
)

func (c CellState) String() string {
	switch c {
	case CellUnknown:
		return "unknown"
	case CellOccupied:
		return "occupied"
	case CellMiss:
		return "miss"
	case CellHit:
		return "hit"
	case CellSunk:
		return "sunk"
	default:
		return fmt.Sprintf("cellstate(%d)", uint8(c))
	}
}

// Resolved reports whether the cell has already been shot at.
// Resolved cells are never valid shot targets.
func (c CellState) Resolved() bool {
	return c == CellMiss || c == CellHit || c == CellSunk
}

// Point is a board coordinate.
// (0,0) is the top-left corner; X grows rightward and Y grows downward.
type Point struct {
	X int32
	Y int32
}

// Ship is one placed fleet member. Cells are derived from Origin: a
// horizontal ship extends along +X, a vertical ship along +Y.
type Ship struct {
	Origin     Point
	Length     int32
	Horizontal bool
	Hits       int32
}

// Cells returns the board coordinates covered by the ship.
func (s *Ship) Cells() []Point {
	cells := make([]Point, 0, s.Length)
	for i := int32(0); i < s.Length; i++ {
		p := s.Origin
		if s.Horizontal {
			p.X += i
		} else {
			p.Y += i
		}
		cells = append(cells, p)
	}
	return cells
}

func (s *Ship) IsSunk() bool {
	return s.Hits >= s.Length
}

// GameState is the complete state of one game session: the hidden fleet, the
// per-cell shot record and the running counters. All mutation goes through
// the rules package; nothing in here is global.
type GameState struct {
	Size  int32
	Cells []CellState // row-major, indexed y*Size+x
	Ships []Ship

	ShotCount int32
	HitCount  int32
	// TotalShipCells is the number of hits required to win,
	// fixed once the fleet is placed.
	TotalShipCells int32
}

// NewGameState creates an empty size x size board with no fleet.
func NewGameState(size int32) *GameState {
	return &GameState{
		Size:  size,
		Cells: make([]CellState, size*size),
	}
}

func (s *GameState) InBounds(x, y int32) bool {
	return x >= 0 && x < s.Size && y >= 0 && y < s.Size
}

// At returns the state of cell (x,y). Out-of-range coordinates are a
// programming error and panic.
func (s *GameState) At(x, y int32) CellState {
	s.mustInBounds(x, y)
	return s.Cells[y*s.Size+x]
}

// Set writes the state of cell (x,y). Out-of-range coordinates are a
// programming error and panic.
func (s *GameState) Set(x, y int32, c CellState) {
	s.mustInBounds(x, y)
	s.Cells[y*s.Size+x] = c
}

func (s *GameState) mustInBounds(x, y int32) {
	if !s.InBounds(x, y) {
		panic(fmt.Sprintf("game: cell (%d,%d) outside %dx%d board", x, y, s.Size, s.Size))
	}
}

// ShipAt returns the fleet member covering (x,y), found by linear scan.
// It returns nil when no ship covers the cell.
func (s *GameState) ShipAt(x, y int32) *Ship {
	for i := range s.Ships {
		ship := &s.Ships[i]
		for _, p := range ship.Cells() {
			if p.X == x && p.Y == y {
				return ship
			}
		}
	}
	return nil
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Size:           s.Size,
		ShotCount:      s.ShotCount,
		HitCount:       s.HitCount,
		TotalShipCells: s.TotalShipCells,
	}

	if len(s.Cells) > 0 {
		out.Cells = make([]CellState, len(s.Cells))
		copy(out.Cells, s.Cells)
	}

	if len(s.Ships) > 0 {
		out.Ships = make([]Ship, len(s.Ships))
		copy(out.Ships, s.Ships)
	}

	return out
}
