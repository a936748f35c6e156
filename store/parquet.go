package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// GameRow is the per-game summary stored in the results archive.
//
// One row per completed game. ShipLengths is the comma-joined fleet config so
// runs with different fleets can be separated in queries without a nested
// column.
type GameRow struct {
	GameID      string `parquet:"game_id,dict"`
	Worker      int32  `parquet:"worker"`
	Seed        int64  `parquet:"seed"`
	StartedNs   int64  `parquet:"started_ns"`
	BoardSize   int32  `parquet:"board_size"`
	ShipLengths string `parquet:"ship_lengths,dict"`
	SkewEnabled bool   `parquet:"skew_enabled"`
	SkewFactor  int32  `parquet:"skew_factor"`
	Shots       int32  `parquet:"shots"`
	Hits        int32  `parquet:"hits"`
	DurationUs  int64  `parquet:"duration_us"`
	Source      string `parquet:"source,dict"`
}

// ShotRow is one resolved shot within a game, in firing order.
//
// ScoreCount and ScoreLocked capture the probability-field score the shot was
// chosen at, before the board changed.
type ShotRow struct {
	GameID         string `parquet:"game_id,dict"`
	ShotIdx        int32  `parquet:"shot_idx"`
	X              int32  `parquet:"x"`
	Y              int32  `parquet:"y"`
	Result         string `parquet:"result,dict"`
	ScoreCount     int32  `parquet:"score_count"`
	ScoreLocked    bool   `parquet:"score_locked"`
	HitsAfter      int32  `parquet:"hits_after"`
	ShipsRemaining int32  `parquet:"ships_remaining"`
}

// WriteGamesBatchAtomic writes game rows into outDir/tmp and atomically moves
// the file into outDir, so readers never observe a partially-written batch.
func WriteGamesBatchAtomic(outDir string, rows []GameRow) (string, error) {
	return writeBatchAtomic(outDir, "games", "game_row_v1", rows)
}

// WriteShotsBatchAtomic is the per-shot counterpart of WriteGamesBatchAtomic.
func WriteShotsBatchAtomic(outDir string, rows []ShotRow) (string, error) {
	return writeBatchAtomic(outDir, "shots", "shot_row_v1", rows)
}

func writeBatchAtomic[T any](outDir, kind, schema string, rows []T) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%s_%d.parquet", kind, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
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

// ReadGameRows loads every game row from one batch file.
func ReadGameRows(path string) ([]GameRow, error) {
	return readRows[GameRow](path)
}

// ReadShotRows loads every shot row from one batch file.
func ReadShotRows(path string) ([]ShotRow, error) {
	return readRows[ShotRow](path)
}

func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("parse parquet: %w", err)
	}

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	out := make([]T, 0, reader.NumRows())
	buf := make([]T, 256)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}
