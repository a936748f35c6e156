package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// FieldSnapshot is the full probability field at the moment a shot was
// chosen, row-major like the board. It is stored as JSON inside the parquet
// row so the nested arrays stay together.
type FieldSnapshot struct {
	Counts []int32 `json:"counts"`
	Locked []bool  `json:"locked"`
}

// DebugShotRow stores the complete solver view for one shot of a debug game:
// the chosen target and its score, the board after the shot resolved, and the
// field the choice was made from.
type DebugShotRow struct {
	GameID    string `parquet:"game_id,dict" json:"game_id"`
	ShotIdx   int32  `parquet:"shot_idx" json:"shot_idx"`
	BoardSize int32  `parquet:"board_size" json:"board_size"`

	X           int32  `parquet:"x" json:"x"`
	Y           int32  `parquet:"y" json:"y"`
	Result      string `parquet:"result,dict" json:"result"`
	ScoreCount  int32  `parquet:"score_count" json:"score_count"`
	ScoreLocked bool   `parquet:"score_locked" json:"score_locked"`

	ShotsAfter int32 `parquet:"shots_after" json:"shots_after"`
	HitsAfter  int32 `parquet:"hits_after" json:"hits_after"`
	GameOver   bool  `parquet:"game_over" json:"game_over"`

	// Cells is the board after the shot, row-major CellState values.
	Cells []int32 `parquet:"cells" json:"cells"`

	// FieldJSON is a FieldSnapshot serialized as JSON.
	FieldJSON []byte `parquet:"field_json" json:"-"`
}

// WriteDebugGameParquet writes one debug game to its own parquet file.
func WriteDebugGameParquet(outDir string, gameID string, rows []DebugShotRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("debug_%s_%d.parquet", gameID, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("field_json"),
		parquet.KeyValueMetadata("schema", "debug_game_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadDebugGameParquet loads every shot row of one debug game file.
func ReadDebugGameParquet(path string) ([]DebugShotRow, error) {
	return readRows[DebugShotRow](path)
}
