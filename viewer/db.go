package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DBCache maintains a cached in-memory DuckDB connection whose views cover
// every batch file under the data roots. The connection is rebuilt at most
// once per refresh interval so new batches show up without a restart.
type DBCache struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time
}

// NewDBCache creates a new DBCache with the given roots and refresh rate.
func NewDBCache(roots []string, refreshRate time.Duration) *DBCache {
	return &DBCache{
		roots:       roots,
		refreshRate: refreshRate,
	}
}

// Get returns the cached DB connection, refreshing if needed.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}

	return c.refreshLocked()
}

// Refresh forces a rebuild of the cached connection.
func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()

	newDB, err := openDuckDBForRoots(c.roots)
	if err != nil {
		return nil, err
	}

	if c.db != nil {
		_ = c.db.Close()
	}

	c.db = newDB
	c.lastRefresh = time.Now()

	slog.Info("duckdb views refreshed", "took", time.Since(start).String())
	return c.db, nil
}

// Close closes the cached DB connection.
func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// findBatchFiles collects the parquet batches of one kind under a root,
// skipping tmp staging directories so half-written files never surface.
func findBatchFiles(root, prefix string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(strings.ToLower(name), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return nil, nil
		}
		return nil, walkErr
	}
	return files, nil
}

func findBatchFilesMulti(roots []string, prefix string) ([]string, error) {
	seen := make(map[string]bool, 1024)
	out := make([]string, 0, 1024)
	for _, r := range roots {
		files, err := findBatchFiles(r, prefix)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

const emptyGamesView = `CREATE OR REPLACE VIEW games AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS game_id,
			NULL::INTEGER AS worker,
			NULL::BIGINT AS seed,
			NULL::BIGINT AS started_ns,
			NULL::INTEGER AS board_size,
			NULL::VARCHAR AS ship_lengths,
			NULL::BOOLEAN AS skew_enabled,
			NULL::INTEGER AS skew_factor,
			NULL::INTEGER AS shots,
			NULL::INTEGER AS hits,
			NULL::BIGINT AS duration_us,
			NULL::VARCHAR AS source,
			NULL::VARCHAR AS filename
	) WHERE 1=0`

const emptyShotsView = `CREATE OR REPLACE VIEW shots AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS game_id,
			NULL::INTEGER AS shot_idx,
			NULL::INTEGER AS x,
			NULL::INTEGER AS y,
			NULL::VARCHAR AS result,
			NULL::INTEGER AS score_count,
			NULL::BOOLEAN AS score_locked,
			NULL::INTEGER AS hits_after,
			NULL::INTEGER AS ships_remaining,
			NULL::VARCHAR AS filename
	) WHERE 1=0`

func openDuckDBForRoots(roots []string) (*sql.DB, error) {
	gamesFiles, err := findBatchFilesMulti(roots, "batch_games_")
	if err != nil {
		return nil, err
	}
	shotsFiles, err := findBatchFilesMulti(roots, "batch_shots_")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")
	// Disable DuckDB's object cache so API responses reflect on-disk changes.
	_, _ = db.Exec("PRAGMA enable_object_cache=false")

	if err := createView(db, "games", gamesFiles, emptyGamesView); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createView(db, "shots", shotsFiles, emptyShotsView); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createView(db *sql.DB, name string, files []string, emptySQL string) error {
	if len(files) == 0 {
		_, err := db.Exec(emptySQL)
		return err
	}

	arr := make([]string, 0, len(files))
	for _, p := range files {
		arr = append(arr, "'"+escapeSQLString(p)+"'")
	}
	// filename=true adds provenance for the UI; union_by_name tolerates
	// schema drift between old and new batches.
	sqlText := "CREATE OR REPLACE VIEW " + name + " AS SELECT * FROM read_parquet([" +
		strings.Join(arr, ",") + "], filename=true, union_by_name=true)"
	_, err := db.Exec(sqlText)
	return err
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func queryGamesTotal(ctx context.Context, db *sql.DB) (int64, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// normalizeSort maps user-facing sort keys to column names. Must be safe:
// the result is concatenated into SQL.
func normalizeSort(sortKey string, sortDir string) (string, string) {
	sk := strings.ToLower(strings.TrimSpace(sortKey))
	sd := strings.ToLower(strings.TrimSpace(sortDir))
	if sd != "asc" && sd != "desc" {
		sd = "desc"
	}
	switch sk {
	case "time", "started", "started_ns":
		sk = "started_ns"
	case "id", "game", "game_id":
		sk = "game_id"
	case "shots":
		sk = "shots"
	case "hits":
		sk = "hits"
	case "seed":
		sk = "seed"
	case "board", "board_size":
		sk = "board_size"
	case "duration", "duration_us":
		sk = "duration_us"
	case "source":
		sk = "source"
	case "file", "filename":
		sk = "filename"
	default:
		sk = "started_ns"
		sd = "desc"
	}
	return sk, sd
}

func makeRelativeToRoots(filename string, roots []string) string {
	fn := strings.TrimSpace(filename)
	if fn == "" {
		return ""
	}
	best := fn
	bestLen := len(best)
	for _, r := range roots {
		root := strings.TrimSpace(r)
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, fn)
		if err != nil {
			continue
		}
		// Ignore paths that escape the root.
		if strings.HasPrefix(rel, "..") {
			continue
		}
		cand := filepath.ToSlash(filepath.Join(root, rel))
		if len(cand) < bestLen {
			best = cand
			bestLen = len(cand)
		}
	}
	return best
}

func queryGames(ctx context.Context, db *sql.DB, roots []string, limit, offset int, sortKey, sortDir string) ([]GameSummary, error) {
	sk, sd := normalizeSort(sortKey, sortDir)

	orderClause := " ORDER BY " + sk + " " + strings.ToUpper(sd)
	// Stable tie-breakers.
	if sk != "started_ns" {
		orderClause += ", started_ns DESC"
	}
	orderClause += ", game_id DESC"

	query := `SELECT
			game_id,
			worker::INTEGER,
			seed::BIGINT,
			started_ns::BIGINT,
			board_size::INTEGER,
			ship_lengths,
			skew_enabled,
			skew_factor::INTEGER,
			shots::INTEGER,
			hits::INTEGER,
			duration_us::BIGINT,
			source,
			filename
		FROM games` +
		orderClause +
		` LIMIT ? OFFSET ?`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GameSummary, 0, limit)
	for rows.Next() {
		var g GameSummary
		var file string
		if err := rows.Scan(&g.GameID, &g.Worker, &g.Seed, &g.StartedNs, &g.BoardSize, &g.ShipLengths,
			&g.SkewEnabled, &g.SkewFactor, &g.Shots, &g.Hits, &g.DurationUs, &g.Source, &file); err != nil {
			return nil, err
		}
		g.SourceFile = makeRelativeToRoots(file, roots)
		out = append(out, g)
	}
	return out, rows.Err()
}

func queryShots(ctx context.Context, db *sql.DB, gameID string) ([]ShotView, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT shot_idx::INTEGER, x::INTEGER, y::INTEGER, result, score_count::INTEGER, score_locked, hits_after::INTEGER, ships_remaining::INTEGER
		 FROM shots
		 WHERE game_id = ?
		 ORDER BY shot_idx ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shots := make([]ShotView, 0, 64)
	for rows.Next() {
		var s ShotView
		if err := rows.Scan(&s.ShotIdx, &s.X, &s.Y, &s.Result, &s.ScoreCount, &s.ScoreLocked, &s.HitsAfter, &s.ShipsRemaining); err != nil {
			return nil, err
		}
		shots = append(shots, s)
	}
	return shots, rows.Err()
}

func queryStats(ctx context.Context, db *sql.DB) (StatsResponse, error) {
	var out StatsResponse
	row := db.QueryRowContext(ctx, `SELECT
			COUNT(*)::BIGINT,
			COALESCE(AVG(shots), 0)::DOUBLE,
			COALESCE(quantile_cont(shots, 0.5), 0)::DOUBLE,
			COALESCE(MIN(shots), 0)::INTEGER,
			COALESCE(MAX(shots), 0)::INTEGER,
			COALESCE(SUM(hits), 0)::BIGINT
		FROM games`)
	if err := row.Scan(&out.Games, &out.MeanShots, &out.MedianShots, &out.MinShots, &out.MaxShots, &out.TotalHits); err != nil {
		return StatsResponse{}, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT shots::INTEGER, COUNT(*)::BIGINT FROM games GROUP BY shots ORDER BY shots ASC`)
	if err != nil {
		return StatsResponse{}, err
	}
	defer rows.Close()

	out.Histogram = make([]HistogramBucket, 0, 64)
	for rows.Next() {
		var b HistogramBucket
		if err := rows.Scan(&b.Shots, &b.Games); err != nil {
			return StatsResponse{}, err
		}
		out.Histogram = append(out.Histogram, b)
	}
	return out, rows.Err()
}
