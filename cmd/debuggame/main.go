package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/executor/selfplay"
	"github.com/bp-bling/BattleshipAI/replay"
	"github.com/bp-bling/BattleshipAI/rules"
	"github.com/bp-bling/BattleshipAI/store"
)

func main() {
	outDir := flag.String("out-dir", "debug_games", "Output directory for game traces")
	replayPath := flag.String("replay-db", "", "Optional SQLite archive to record the game into")
	seed := flag.Int64("seed", 0, "RNG seed (0 derives one from the clock)")
	boardSize := flag.Int("board-size", 10, "Board dimension")
	shipLengths := flag.String("ship-lengths", "5,4,3,3,2", "Comma-separated ship lengths")
	skew := flag.Bool("skew", true, "Enable the hit-adjacency skew pass")
	skewFactor := flag.Int("skew-factor", 10, "Skew multiplier for cells next to open hits")
	quiet := flag.Bool("quiet", false, "Suppress the per-shot board dump")
	frontendHost := flag.String("frontend", "http://localhost:5173", "Frontend base URL")
	flag.Parse()

	lengths, err := selfplay.ParseLengths(*shipLengths)
	if err != nil {
		log.Fatalf("Bad -ship-lengths: %v", err)
	}
	if err := rules.ValidateFleetConfig(int32(*boardSize), lengths); err != nil {
		log.Fatalf("Bad fleet config: %v", err)
	}
	cfg := selfplay.Config{
		BoardSize:   int32(*boardSize),
		ShipLengths: lengths,
		Density:     density.Config{SkewEnabled: *skew, SkewFactor: int32(*skewFactor)},
	}

	gameSeed := *seed
	if gameSeed == 0 {
		gameSeed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Printf("Tracing game: board=%dx%d fleet=%s skew=%v seed=%d",
		*boardSize, *boardSize, *shipLengths, *skew, gameSeed)

	onShot := func(p selfplay.DebugProgress) {
		if !*quiet {
			selfplay.PrintBoard(p.Session)
		}
	}

	result, err := selfplay.PlayDebugGame(ctx, cfg, gameSeed, onShot)
	if err != nil {
		log.Fatalf("Failed to trace game: %v", err)
	}

	log.Printf("Game complete: %d shots", result.Shots)

	parquetPath, err := store.WriteDebugGameParquet(*outDir, result.GameID, result.Rows)
	if err != nil {
		log.Fatalf("Failed to write trace: %v", err)
	}
	log.Printf("Trace written to: %s", parquetPath)

	if *replayPath != "" {
		if err := archiveGame(*replayPath, cfg, gameSeed, result); err != nil {
			log.Fatalf("Failed to archive game: %v", err)
		}
		log.Printf("Game archived to: %s", *replayPath)
	}

	frontendURL := fmt.Sprintf("%s/debug/%s", *frontendHost, result.GameID)
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Trace ready! Open in browser:\n")
	fmt.Printf("  %s\n", frontendURL)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}

// archiveGame stores the traced game in the replay archive, one JSON frame
// per shot with the field snapshot inlined.
func archiveGame(path string, cfg selfplay.Config, seed int64, result *selfplay.DebugGameResult) error {
	db, err := replay.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	frames := make([]replay.Frame, 0, len(result.Rows))
	for _, row := range result.Rows {
		var field store.FieldSnapshot
		if err := json.Unmarshal(row.FieldJSON, &field); err != nil {
			return fmt.Errorf("decode field snapshot: %w", err)
		}
		payload, err := json.Marshal(struct {
			store.DebugShotRow
			Field store.FieldSnapshot `json:"field"`
		}{row, field})
		if err != nil {
			return fmt.Errorf("marshal frame: %w", err)
		}
		frames = append(frames, replay.Frame{GameID: result.GameID, ShotIdx: row.ShotIdx, Payload: payload})
	}

	return db.InsertGame(replay.Game{
		ID:          result.GameID,
		Seed:        seed,
		BoardSize:   cfg.BoardSize,
		ShipLengths: selfplay.FormatLengths(cfg.ShipLengths),
		Shots:       result.Shots,
	}, frames)
}
