// visualize.go - console visualization for debugging solver games.
//
// PrintBoard outputs an ASCII view of the board plus the probability field
// the next target will be chosen from.
package selfplay

import (
	"fmt"
	"log"
	"strings"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/game"
)

var cellSymbols = map[game.CellState]string{
	game.CellUnknown:  ".",
	game.CellOccupied: "o",
	game.CellMiss:     "*",
	game.CellHit:      "x",
	game.CellSunk:     "#",
}

func PrintBoard(session *Session) {
	state := session.State

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n=== TRACE Shot %d (hits %d/%d, ships left %d) ===\n",
		state.ShotCount, state.HitCount, state.TotalShipCells, session.RemainingShips()))

	for y := int32(0); y < state.Size; y++ {
		for x := int32(0); x < state.Size; x++ {
			sb.WriteString(cellSymbols[state.At(x, y)] + " ")
		}
		sb.WriteString("\n")
	}

	printFieldLayer(&sb, session.Field)
	log.Print(sb.String())
}

// printFieldLayer renders the score of every cell: raw counts, or L for
// locked cells, or a dot for dead cells.
func printFieldLayer(sb *strings.Builder, f *density.Field) {
	sb.WriteString("\n--- TRACE Field scores ---\n")
	for y := int32(0); y < f.Size; y++ {
		for x := int32(0); x < f.Size; x++ {
			sc := f.At(x, y)
			switch {
			case sc.Locked:
				sb.WriteString("   L ")
			case sc.Count == 0:
				sb.WriteString("   . ")
			default:
				sb.WriteString(fmt.Sprintf("%4d ", sc.Count))
			}
		}
		sb.WriteString("\n")
	}
}
