package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/bp-bling/BattleshipAI/store"
)

// listDebugGames scans the debug directory for traced games. Files that
// cannot be read are skipped so one bad trace does not hide the rest.
func listDebugGames(debugDir string) ([]DebugGameSummary, error) {
	entries, err := os.ReadDir(debugDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DebugGameSummary{}, nil
		}
		return nil, fmt.Errorf("read debug dir: %w", err)
	}

	games := make([]DebugGameSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".parquet") {
			continue
		}
		summary, err := readDebugGameSummary(filepath.Join(debugDir, entry.Name()))
		if err != nil {
			slog.Warn("skipping unreadable trace", "file", entry.Name(), "err", err)
			continue
		}
		summary.FileName = entry.Name()
		games = append(games, summary)
	}

	// Newest traces first; file names embed the creation time.
	sort.Slice(games, func(i, j int) bool { return games[i].FileName > games[j].FileName })
	return games, nil
}

// readDebugGameSummary reads just the first row of a trace file, enough to
// describe the game without loading every shot.
func readDebugGameSummary(path string) (DebugGameSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return DebugGameSummary{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return DebugGameSummary{}, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return DebugGameSummary{}, err
	}

	reader := parquet.NewGenericReader[store.DebugShotRow](pf)
	defer reader.Close()

	rows := make([]store.DebugShotRow, 1)
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return DebugGameSummary{}, err
	}
	if n == 0 {
		return DebugGameSummary{}, io.EOF
	}

	return DebugGameSummary{
		GameID:    rows[0].GameID,
		BoardSize: rows[0].BoardSize,
		ShotCount: int(reader.NumRows()),
	}, nil
}

// loadDebugGame loads the complete trace for one game id.
func loadDebugGame(debugDir string, gameID string) (*DebugGameResponse, error) {
	entries, err := os.ReadDir(debugDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}

	var path string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".parquet") {
			continue
		}
		if strings.Contains(entry.Name(), gameID) {
			path = filepath.Join(debugDir, entry.Name())
			break
		}
	}
	if path == "" {
		return nil, os.ErrNotExist
	}

	rows, err := store.ReadDebugGameParquet(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	if len(rows) == 0 {
		return nil, os.ErrNotExist
	}

	resp := &DebugGameResponse{
		GameID:    rows[0].GameID,
		BoardSize: rows[0].BoardSize,
		ShotCount: len(rows),
		Shots:     make([]DebugShotView, 0, len(rows)),
	}
	for _, row := range rows {
		view := DebugShotView{
			ShotIdx:     row.ShotIdx,
			X:           row.X,
			Y:           row.Y,
			Result:      row.Result,
			ScoreCount:  row.ScoreCount,
			ScoreLocked: row.ScoreLocked,
			ShotsAfter:  row.ShotsAfter,
			HitsAfter:   row.HitsAfter,
			GameOver:    row.GameOver,
			Cells:       row.Cells,
		}
		// The field snapshot travels as JSON inside the row; a trace written
		// before the field was recorded just renders without a heatmap.
		var field store.FieldSnapshot
		if err := json.Unmarshal(row.FieldJSON, &field); err == nil {
			view.Counts = field.Counts
			view.Locked = field.Locked
		}
		resp.Shots = append(resp.Shots, view)
	}
	return resp, nil
}
