package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bp-bling/BattleshipAI/store"
)

// compact merges the many small parquet shards an executor run leaves behind
// into one batch per row kind. Already-merged shards are tracked in an
// append-only log, so interrupted or repeated runs never fold a shard in
// twice.
func main() {
	inDirs := flag.String("in-dirs", filepath.Join("data", "results"), "Comma-separated directories containing batch parquet shards")
	outDir := flag.String("out-dir", filepath.Join("data", "results"), "Output directory for merged batches")
	logPath := flag.String("log-path", "", "Merged-shard log path (default <out-dir>/compacted.log)")
	deleteInputs := flag.Bool("delete-inputs", true, "Remove input shards once merged (disable only with a separate out-dir)")
	minInputs := flag.Int("min-inputs", 2, "Skip a row kind with fewer new shards than this")
	flag.Parse()

	roots := make([]string, 0, 4)
	for _, p := range strings.Split(*inDirs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			die("abs in-dir %s: %v", p, err)
		}
		roots = append(roots, abs)
	}
	if len(roots) == 0 {
		die("no input directories")
	}

	absOut, err := filepath.Abs(*outDir)
	if err != nil {
		die("abs out-dir: %v", err)
	}
	if !*deleteInputs {
		for _, root := range roots {
			if root == absOut {
				die("out-dir must differ from in-dirs when inputs are kept, or the next run merges its own output")
			}
		}
	}

	lp := *logPath
	if lp == "" {
		lp = filepath.Join(absOut, "compacted.log")
	}
	wlog, err := store.OpenWrittenLog(lp)
	if err != nil {
		die("open shard log: %v", err)
	}
	defer wlog.Close()

	gameInputs := findShards(roots, "batch_games_")
	shotInputs := findShards(roots, "batch_shots_")
	if len(gameInputs) == 0 && len(shotInputs) == 0 {
		die("no parquet shards found under %s", strings.Join(roots, ","))
	}

	games := compactKind(kindArgs{
		kind: "games", schema: "game_row_v1",
		inputs: gameInputs, outDir: absOut,
		wlog: wlog, deleteInputs: *deleteInputs, minInputs: *minInputs,
	}, store.ReadGameRows)
	shots := compactKind(kindArgs{
		kind: "shots", schema: "shot_row_v1",
		inputs: shotInputs, outDir: absOut,
		wlog: wlog, deleteInputs: *deleteInputs, minInputs: *minInputs,
	}, store.ReadShotRows)

	fmt.Fprintf(os.Stderr, "done: games merged=%d skipped=%d failed=%d rows=%d; shots merged=%d skipped=%d failed=%d rows=%d\n",
		games.merged, games.skipped, games.failed, games.rows,
		shots.merged, shots.skipped, shots.failed, shots.rows)
	if games.failed > 0 || shots.failed > 0 {
		os.Exit(1)
	}
}

// findShards walks the roots collecting parquet files with the given name
// prefix. Files still being written live under tmp/ and are skipped.
func findShards(roots []string, prefix string) []string {
	out := make([]string, 0, 1024)
	seen := make(map[string]bool)
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() == "tmp" {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(strings.ToLower(name), ".parquet") && !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
	}
	return out
}

type kindArgs struct {
	kind         string
	schema       string
	inputs       []string
	outDir       string
	wlog         *store.WrittenLog
	deleteInputs bool
	minInputs    int
}

type kindStats struct {
	merged  int
	skipped int
	failed  int
	rows    int
}

func compactKind[T any](args kindArgs, read func(string) ([]T, error)) kindStats {
	var stats kindStats

	fresh := make([]string, 0, len(args.inputs))
	for _, path := range args.inputs {
		if args.wlog.Has(path) {
			stats.skipped++
			continue
		}
		fresh = append(fresh, path)
	}
	if len(fresh) < args.minInputs {
		fmt.Fprintf(os.Stderr, "%s: %d new shards, nothing to merge\n", args.kind, len(fresh))
		return stats
	}

	writer, err := store.NewBatchWriter[T](args.outDir, args.kind, args.schema)
	if err != nil {
		die("%s: open batch writer: %v", args.kind, err)
	}

	consumed := make([]string, 0, len(fresh))
	for _, path := range fresh {
		rows, err := read(path)
		if err != nil {
			stats.failed++
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
			continue
		}
		if err := writer.WriteRows(rows); err != nil {
			// The output file is suspect after a write error; abandon the run
			// rather than record half a shard.
			die("%s: write rows from %s: %v", args.kind, path, err)
		}
		writer.NoteSourceConsumed()
		consumed = append(consumed, path)
		stats.rows += len(rows)
		stats.merged++
		if stats.merged%25 == 0 {
			fmt.Fprintf(os.Stderr, "%s: merged %d/%d...\n", args.kind, stats.merged, len(fresh))
		}
	}

	outPath, rows, sources, err := writer.Finalize()
	if err != nil {
		die("%s: finalize: %v", args.kind, err)
	}
	if outPath == "" {
		return stats
	}
	fmt.Fprintf(os.Stderr, "%s: wrote %s (rows=%d shards=%d)\n", args.kind, outPath, rows, sources)

	if err := args.wlog.AddMany(consumed); err != nil {
		die("%s: record merged shards: %v", args.kind, err)
	}
	if args.deleteInputs {
		for _, path := range consumed {
			if err := os.Remove(path); err != nil {
				fmt.Fprintf(os.Stderr, "remove %s: %v\n", path, err)
			}
		}
	}
	return stats
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
