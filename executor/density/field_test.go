package density

import (
	"testing"

	"github.com/bp-bling/BattleshipAI/game"
)

// testState builds a board from ascii rows plus a fleet of the given lengths.
// Ship origins are irrelevant to the field, which only reads lengths and sunk
// flags, so the ships are registered without board positions.
func testState(t *testing.T, lengths []int32, rows []string) *game.GameState {
	t.Helper()
	state := game.NewGameState(int32(len(rows)))
	for y, row := range rows {
		if int32(len(row)) != state.Size {
			t.Fatalf("row %d has %d cells, want %d", y, len(row), state.Size)
		}
		for x := 0; x < len(row); x++ {
			var c game.CellState
			switch row[x] {
			case '.':
				c = game.CellUnknown
			case 'o':
				c = game.CellOccupied
			case '*':
				c = game.CellMiss
			case 'x':
				c = game.CellHit
			case '#':
				c = game.CellSunk
			default:
				t.Fatalf("row %d col %d: unknown symbol %q", y, x, row[x])
			}
			state.Set(int32(x), int32(y), c)
		}
	}
	for _, l := range lengths {
		state.Ships = append(state.Ships, game.Ship{Length: l})
		state.TotalShipCells += l
	}
	return state
}

func emptyRows(size int) []string {
	rows := make([]string, size)
	for i := range rows {
		row := make([]byte, size)
		for j := range row {
			row[j] = '.'
		}
		rows[i] = string(row)
	}
	return rows
}

func TestRecompute_EmptyBoardCounts(t *testing.T) {
	// Single ship of length 2 on a 5x5 board. A corner is covered by two
	// placements, the centre by four.
	state := testState(t, []int32{2}, emptyRows(5))
	f := NewField(5)
	f.Recompute(state, Config{})

	if got := f.At(0, 0).Count; got != 2 {
		t.Fatalf("corner count=%d want=2", got)
	}
	if got := f.At(2, 2).Count; got != 4 {
		t.Fatalf("centre count=%d want=4", got)
	}
	if got := f.At(4, 4).Count; got != 2 {
		t.Fatalf("far corner count=%d want=2", got)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	state := testState(t, []int32{3, 2}, []string{
		".*...",
		".x...",
		"..#..",
		".....",
		"..*..",
	})
	cfg := DefaultConfig()

	f := NewField(5)
	f.Recompute(state, cfg)
	first := make([]Score, len(f.Scores))
	copy(first, f.Scores)

	f.Recompute(state, cfg)
	for i := range first {
		if f.Scores[i] != first[i] {
			t.Fatalf("cell %d changed on identical recompute: %+v -> %+v", i, first[i], f.Scores[i])
		}
	}
}

func TestRecompute_MissBlocksRuns(t *testing.T) {
	state := testState(t, []int32{2}, []string{
		".....",
		".....",
		"..*..",
		".....",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, Config{})

	if got := f.At(2, 2).Count; got != 0 {
		t.Fatalf("miss cell count=%d want=0", got)
	}
	// Neighbours lose the placements that crossed the miss: down from 4 to 3.
	if got := f.At(1, 2).Count; got != 3 {
		t.Fatalf("neighbour count=%d want=3", got)
	}
}

func TestRecompute_SunkShipsExcluded(t *testing.T) {
	withSunk := testState(t, []int32{2, 3}, emptyRows(5))
	withSunk.Ships[0].Hits = 2 // length-2 ship already sunk

	aliveOnly := testState(t, []int32{3}, emptyRows(5))

	fa := NewField(5)
	fa.Recompute(withSunk, Config{})
	fb := NewField(5)
	fb.Recompute(aliveOnly, Config{})

	for i := range fa.Scores {
		if fa.Scores[i] != fb.Scores[i] {
			t.Fatalf("cell %d: sunk ship still counted: %+v vs %+v", i, fa.Scores[i], fb.Scores[i])
		}
	}
}

func TestSkew_IsolatedHitMultipliesNeighbours(t *testing.T) {
	state := testState(t, []int32{3}, []string{
		".....",
		".....",
		"..x..",
		".....",
		".....",
	})
	cfg := Config{SkewEnabled: true, SkewFactor: 10}
	f := NewField(5)
	f.Recompute(state, cfg)

	// Each neighbour of the isolated hit carries 5 surviving placements,
	// multiplied by the skew factor.
	for _, p := range []game.Point{{X: 1, Y: 2}, {X: 3, Y: 2}, {X: 2, Y: 1}, {X: 2, Y: 3}} {
		sc := f.At(p.X, p.Y)
		if sc.Count != 50 {
			t.Fatalf("neighbour (%d,%d) count=%d want=50", p.X, p.Y, sc.Count)
		}
		if sc.Locked {
			t.Fatalf("neighbour (%d,%d) locked with no hit pair", p.X, p.Y)
		}
	}

	// Cells away from the hit keep their raw counts.
	if got := f.At(0, 0).Count; got != 2 {
		t.Fatalf("corner count=%d want=2", got)
	}
}

func TestSkew_DisabledLeavesRawCounts(t *testing.T) {
	state := testState(t, []int32{3}, []string{
		".....",
		".....",
		"..x..",
		".....",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, Config{SkewEnabled: false, SkewFactor: 10})

	if got := f.At(1, 2).Count; got != 5 {
		t.Fatalf("neighbour count=%d want=5 with skew disabled", got)
	}
	for _, sc := range f.Scores {
		if sc.Locked {
			t.Fatalf("locked cell with skew disabled")
		}
	}
}

func TestSkew_HitPairLocksRunEnds(t *testing.T) {
	state := testState(t, []int32{4}, []string{
		".....",
		".....",
		".xx..",
		".....",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, DefaultConfig())

	if !f.At(0, 2).Locked {
		t.Fatalf("cell before the hit run not locked")
	}
	if !f.At(3, 2).Locked {
		t.Fatalf("cell after the hit run not locked")
	}
	// Perpendicular neighbours are multiplied, never locked.
	for _, p := range []game.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 3}, {X: 2, Y: 3}} {
		if f.At(p.X, p.Y).Locked {
			t.Fatalf("perpendicular neighbour (%d,%d) locked", p.X, p.Y)
		}
	}
}

func TestSkew_LongRunLocksPastAllHits(t *testing.T) {
	state := testState(t, []int32{5}, []string{
		".....",
		".....",
		".xxx.",
		".....",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, DefaultConfig())

	if !f.At(0, 2).Locked || !f.At(4, 2).Locked {
		t.Fatalf("run ends not locked: left=%v right=%v", f.At(0, 2), f.At(4, 2))
	}
	// Walking outward skips over every consecutive hit, so nothing inside
	// the run is locked.
	for x := int32(1); x <= 3; x++ {
		if f.At(x, 2).Locked {
			t.Fatalf("hit cell (%d,2) locked", x)
		}
	}
}

func TestSkew_RunAgainstEdgeLocksOneEnd(t *testing.T) {
	state := testState(t, []int32{3}, []string{
		"xx...",
		".....",
		".....",
		".....",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, DefaultConfig())

	if !f.At(2, 0).Locked {
		t.Fatalf("open end of edge run not locked")
	}
	for i, sc := range f.Scores {
		if sc.Locked && i != 2 {
			t.Fatalf("unexpected locked cell at index %d", i)
		}
	}
}

func TestSkew_VerticalPairLocksColumn(t *testing.T) {
	state := testState(t, []int32{3}, []string{
		".....",
		"..x..",
		"..x..",
		".....",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, DefaultConfig())

	if !f.At(2, 0).Locked {
		t.Fatalf("cell above the vertical run not locked")
	}
	if !f.At(2, 3).Locked {
		t.Fatalf("cell below the vertical run not locked")
	}
	if f.At(1, 1).Locked || f.At(3, 2).Locked {
		t.Fatalf("cells beside the vertical run locked")
	}
}

func TestSkew_LockSurvivesAdjacentMultiplication(t *testing.T) {
	// (3,2) is locked by the pair at (1,2)-(2,2) and is also a plain
	// neighbour of the separate hit at (3,3). The lock must hold and keep
	// outranking every unlocked cell.
	state := testState(t, []int32{4}, []string{
		".....",
		".....",
		".xx..",
		"...x.",
		".....",
	})
	f := NewField(5)
	f.Recompute(state, DefaultConfig())

	end := f.At(3, 2)
	if !end.Locked {
		t.Fatalf("run end lost its lock: %+v", end)
	}
	for y := int32(0); y < 5; y++ {
		for x := int32(0); x < 5; x++ {
			sc := f.At(x, y)
			if !sc.Locked && sc.Exceeds(end) {
				t.Fatalf("unlocked cell (%d,%d) %+v outranks locked run end", x, y, sc)
			}
		}
	}
}
