// Package replay archives traced games in SQLite so the viewer can step
// through them shot by shot. Each frame is the JSON the tracer emitted for
// one shot, gzip-compressed at rest.
package replay

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection with thread-safe operations
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Game represents one archived game
type Game struct {
	ID          string
	Seed        int64
	BoardSize   int32
	ShipLengths string
	Shots       int32
	CreatedAt   time.Time
}

// Frame holds the tracer output for a single shot. Payload is raw JSON on
// the way in and on the way out; compression stays inside this package.
type Frame struct {
	GameID  string
	ShotIdx int32
	Payload []byte
}

// Open creates a new database connection and initializes the schema
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}

	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// initSchema creates the required tables if they don't exist
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,           -- game UUID
		seed INTEGER,
		board_size INTEGER,
		ship_lengths TEXT,             -- e.g. "5,4,3,3,2"
		shots INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS frames (
		game_id TEXT,
		shot_idx INTEGER,
		payload BLOB,                  -- gzip-compressed frame JSON
		PRIMARY KEY (game_id, shot_idx),
		FOREIGN KEY(game_id) REFERENCES games(id)
	);

	CREATE INDEX IF NOT EXISTS idx_frames_game_id ON frames(game_id);
	`

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// GameExists checks if a game has already been archived
func (db *DB) GameExists(gameID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var exists int
	err := db.conn.QueryRow("SELECT 1 FROM games WHERE id = ?", gameID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertGame inserts a game and all its frames in a single transaction.
// Frame payloads are compressed before they hit the table.
func (db *DB) InsertGame(game Game, frames []Frame) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT OR IGNORE INTO games (id, seed, board_size, ship_lengths, shots) VALUES (?, ?, ?, ?, ?)",
		game.ID, game.Seed, game.BoardSize, game.ShipLengths, game.Shots,
	)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO frames (game_id, shot_idx, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare frame statement: %w", err)
	}
	defer stmt.Close()

	for _, frame := range frames {
		compressed, err := compressPayload(frame.Payload)
		if err != nil {
			return fmt.Errorf("failed to compress frame %d: %w", frame.ShotIdx, err)
		}
		if _, err := stmt.Exec(frame.GameID, frame.ShotIdx, compressed); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", frame.ShotIdx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetGame returns the archived game record
func (db *DB) GetGame(gameID string) (Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var g Game
	err := db.conn.QueryRow(
		"SELECT id, seed, board_size, ship_lengths, shots, created_at FROM games WHERE id = ?",
		gameID,
	).Scan(&g.ID, &g.Seed, &g.BoardSize, &g.ShipLengths, &g.Shots, &g.CreatedAt)
	if err != nil {
		return Game{}, err
	}
	return g, nil
}

// GetGameFrames returns all frames for a game in shot order, decompressed
func (db *DB) GetGameFrames(gameID string) ([]Frame, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT game_id, shot_idx, payload FROM frames WHERE game_id = ? ORDER BY shot_idx",
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var compressed []byte
		if err := rows.Scan(&f.GameID, &f.ShotIdx, &compressed); err != nil {
			return nil, err
		}
		f.Payload, err = decompressPayload(compressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress frame %d: %w", f.ShotIdx, err)
		}
		frames = append(frames, f)
	}

	return frames, rows.Err()
}

// ListGames returns the most recently archived games, newest first
func (db *DB) ListGames(limit int) ([]Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT id, seed, board_size, ship_lengths, shots, created_at FROM games ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Seed, &g.BoardSize, &g.ShipLengths, &g.Shots, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	return games, rows.Err()
}

// Stats returns statistics about the archive
func (db *DB) Stats() (totalGames, totalFrames int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	err = db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&totalGames)
	if err != nil {
		return
	}

	err = db.conn.QueryRow("SELECT COUNT(*) FROM frames").Scan(&totalFrames)
	return
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func compressPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressPayload(compressed []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
