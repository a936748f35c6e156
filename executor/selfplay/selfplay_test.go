package selfplay

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/game"
	"github.com/bp-bling/BattleshipAI/rules"
	"github.com/bp-bling/BattleshipAI/store"
)

func TestFormatLengths(t *testing.T) {
	if got := FormatLengths([]int32{5, 4, 3, 3, 2}); got != "5,4,3,3,2" {
		t.Fatalf("got %q want %q", got, "5,4,3,3,2")
	}
	if got := FormatLengths(nil); got != "" {
		t.Fatalf("empty fleet formatted as %q", got)
	}
}

func TestParseLengths(t *testing.T) {
	lengths, err := ParseLengths(" 5, 4,3 ,3,2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := FormatLengths(lengths); got != "5,4,3,3,2" {
		t.Fatalf("round trip gave %q", got)
	}

	defaults, err := ParseLengths("")
	if err != nil {
		t.Fatalf("parse of empty string failed: %v", err)
	}
	if got := FormatLengths(defaults); got != FormatLengths(rules.DefaultShipLengths) {
		t.Fatalf("empty string parsed as %q", got)
	}

	if _, err := ParseLengths("5,x,3"); err == nil {
		t.Fatal("expected error for non-numeric length")
	}
	if _, err := ParseLengths(",,"); err == nil {
		t.Fatal("expected error for lengths with no values")
	}
}

func TestSummarize(t *testing.T) {
	odd := Summarize([]int32{48, 17, 52})
	if odd.Games != 3 || odd.Median != 48 || odd.Min != 17 || odd.Max != 52 {
		t.Fatalf("odd summary: %+v", odd)
	}
	if odd.Mean != 39 {
		t.Fatalf("odd mean=%v want=39", odd.Mean)
	}

	even := Summarize([]int32{40, 50, 44, 60})
	if even.Median != 47 {
		t.Fatalf("even median=%v want=47", even.Median)
	}

	empty := Summarize(nil)
	if empty.Games != 0 || empty.Mean != 0 || empty.Median != 0 {
		t.Fatalf("empty summary: %+v", empty)
	}
}

func TestNewSession_PlacesFleetAndField(t *testing.T) {
	session, err := NewSession(DefaultConfig(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}

	if session.RequiredHits() != 17 {
		t.Fatalf("required hits=%d want=17", session.RequiredHits())
	}
	if session.RemainingShips() != 5 {
		t.Fatalf("remaining ships=%d want=5", session.RemainingShips())
	}

	// The opening field must see placements everywhere on a clean board.
	for y := int32(0); y < 10; y++ {
		for x := int32(0); x < 10; x++ {
			if session.ScoreAt(x, y).Count <= 0 {
				t.Fatalf("cell (%d,%d) has no placements on a fresh board", x, y)
			}
		}
	}
}

func TestSession_SingleCellFleet(t *testing.T) {
	cfg := Config{BoardSize: 1, ShipLengths: []int32{1}}
	session, err := NewSession(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}

	rec, err := session.StepOneShot()
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if rec.Result != game.CellSunk {
		t.Fatalf("result=%v want=sunk", rec.Result)
	}
	if !session.GameOver() || session.Shots() != 1 {
		t.Fatalf("1x1 game not finished in one shot: over=%v shots=%d", session.GameOver(), session.Shots())
	}
}

func TestSession_PlaysToCompletion(t *testing.T) {
	session, err := NewSession(DefaultConfig(), rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}

	steps := 0
	for !session.GameOver() {
		if steps > 100 {
			t.Fatalf("game not finished after %d shots", steps)
		}
		if _, err := session.StepOneShot(); err != nil {
			t.Fatalf("step %d failed: %v", steps, err)
		}
		steps++
	}

	if int32(steps) != session.Shots() {
		t.Fatalf("steps=%d but session counted %d shots", steps, session.Shots())
	}
	if session.Shots() < 17 || session.Shots() > 100 {
		t.Fatalf("shots=%d outside [17,100]", session.Shots())
	}
	if session.RemainingShips() != 0 {
		t.Fatalf("%d ships still afloat after game over", session.RemainingShips())
	}

	sunk := 0
	for y := int32(0); y < 10; y++ {
		for x := int32(0); x < 10; x++ {
			if session.CellAt(x, y) == game.CellSunk {
				sunk++
			}
		}
	}
	if sunk != 17 {
		t.Fatalf("sunk cells=%d want=17", sunk)
	}
}

func TestStepOneShot_FinishedGameErrors(t *testing.T) {
	cfg := Config{BoardSize: 2, ShipLengths: []int32{2}}
	session, err := NewSession(cfg, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	for !session.GameOver() {
		if _, err := session.StepOneShot(); err != nil {
			t.Fatalf("step failed: %v", err)
		}
	}

	if _, err := session.StepOneShot(); !errors.Is(err, rules.ErrInvalidShotTarget) {
		t.Fatalf("stepping a finished game: expected ErrInvalidShotTarget, got %v", err)
	}
}

func TestPlayGame_RowsMatchResult(t *testing.T) {
	gameRow, shotRows, result, err := PlayGame(context.Background(), 3, DefaultConfig(), 99, nil)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	if int32(len(shotRows)) != result.Shots || gameRow.Shots != result.Shots {
		t.Fatalf("rows=%d gameRow.Shots=%d result.Shots=%d", len(shotRows), gameRow.Shots, result.Shots)
	}
	if gameRow.GameID != result.GameID || gameRow.GameID == "" {
		t.Fatalf("game id mismatch: %q vs %q", gameRow.GameID, result.GameID)
	}
	if gameRow.Hits != 17 || gameRow.BoardSize != 10 {
		t.Fatalf("gameRow=%+v", gameRow)
	}
	if gameRow.ShipLengths != "5,4,3,3,2" || gameRow.Source != "selfplay" {
		t.Fatalf("gameRow=%+v", gameRow)
	}
	if gameRow.Worker != 3 || gameRow.Seed != 99 {
		t.Fatalf("gameRow=%+v", gameRow)
	}

	validResults := map[string]bool{"miss": true, "hit": true, "sunk": true}
	for i, row := range shotRows {
		if row.ShotIdx != int32(i) {
			t.Fatalf("row %d has shot_idx=%d", i, row.ShotIdx)
		}
		if row.GameID != gameRow.GameID {
			t.Fatalf("row %d has game_id=%q", i, row.GameID)
		}
		if !validResults[row.Result] {
			t.Fatalf("row %d has result=%q", i, row.Result)
		}
	}

	last := shotRows[len(shotRows)-1]
	if last.HitsAfter != 17 || last.Result == "miss" || last.ShipsRemaining != 0 {
		t.Fatalf("final row=%+v", last)
	}
}

func TestPlayGame_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := PlayGame(ctx, 0, DefaultConfig(), 5, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunBatch_DeterministicForSeed(t *testing.T) {
	a, _, err := RunBatch(context.Background(), DefaultConfig(), 40, 1234)
	if err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	b, _, err := RunBatch(context.Background(), DefaultConfig(), 40, 1234)
	if err != nil {
		t.Fatalf("second batch failed: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("game %d diverged: %d vs %d shots", i, a[i], b[i])
		}
	}
}

func TestRunBatch_SeededStats(t *testing.T) {
	counts, summary, err := RunBatch(context.Background(), DefaultConfig(), 1000, 20250101)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	if summary.Games != 1000 {
		t.Fatalf("games=%d want=1000", summary.Games)
	}
	for i, c := range counts {
		if c < 17 || c > 100 {
			t.Fatalf("game %d took %d shots, outside [17,100]", i, c)
		}
	}
	// The classic fleet on 10x10 lands in the mid-to-high 40s on average.
	if summary.Mean < 42 || summary.Mean > 55 {
		t.Fatalf("mean=%.2f outside expected band [42,55]", summary.Mean)
	}
	if summary.Median < float64(summary.Min) || summary.Median > float64(summary.Max) {
		t.Fatalf("median=%.1f outside [min=%d,max=%d]", summary.Median, summary.Min, summary.Max)
	}
}

func TestPlayDebugGame_CapturesSolverView(t *testing.T) {
	cfg := Config{
		BoardSize:   6,
		ShipLengths: []int32{3, 2},
		Density:     density.DefaultConfig(),
	}

	calls := 0
	result, err := PlayDebugGame(context.Background(), cfg, 11, func(p DebugProgress) {
		calls++
		if p.Session == nil {
			t.Fatalf("progress without session")
		}
	})
	if err != nil {
		t.Fatalf("debug game failed: %v", err)
	}

	if int32(len(result.Rows)) != result.Shots {
		t.Fatalf("rows=%d shots=%d", len(result.Rows), result.Shots)
	}
	if calls != len(result.Rows) {
		t.Fatalf("onShot calls=%d rows=%d", calls, len(result.Rows))
	}

	for i, row := range result.Rows {
		if len(row.Cells) != 36 {
			t.Fatalf("row %d has %d cells, want 36", i, len(row.Cells))
		}
		var snap store.FieldSnapshot
		if err := json.Unmarshal(row.FieldJSON, &snap); err != nil {
			t.Fatalf("row %d field json: %v", i, err)
		}
		if len(snap.Counts) != 36 || len(snap.Locked) != 36 {
			t.Fatalf("row %d snapshot sizes: counts=%d locked=%d", i, len(snap.Counts), len(snap.Locked))
		}
		if row.ShotsAfter != int32(i)+1 {
			t.Fatalf("row %d shots_after=%d", i, row.ShotsAfter)
		}
	}

	if !result.Rows[len(result.Rows)-1].GameOver {
		t.Fatalf("final debug row not marked game over")
	}
}

func BenchmarkPlayGame(b *testing.B) {
	cfg := DefaultConfig()
	for i := 0; i < b.N; i++ {
		if _, _, _, err := PlayGame(context.Background(), 0, cfg, int64(i), nil); err != nil {
			b.Fatalf("play failed: %v", err)
		}
	}
}
