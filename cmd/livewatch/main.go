package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bp-bling/BattleshipAI/replay"
)

// liveFrame mirrors the /api/live wire format. Fields this client does not
// render are left out; the raw message is what gets archived.
type liveFrame struct {
	Type           string  `json:"type"`
	GameID         string  `json:"game_id"`
	Seed           int64   `json:"seed"`
	ShotIdx        int32   `json:"shot_idx"`
	X              int32   `json:"x"`
	Y              int32   `json:"y"`
	Result         string  `json:"result"`
	ScoreCount     int32   `json:"score_count"`
	Cells          []int32 `json:"cells"`
	Hits           int32   `json:"hits"`
	RequiredHits   int32   `json:"required_hits"`
	ShipsRemaining int32   `json:"ships_remaining"`
}

var cellSymbols = map[int32]string{
	0: ".", // unknown
	1: "o", // occupied
	2: "*", // miss
	3: "x", // hit
	4: "#", // sunk
}

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8080/api/live", "Viewer live endpoint")
	seed := flag.Int64("seed", 0, "RNG seed for the streamed game (0 lets the server pick)")
	boardSize := flag.Int("board-size", 10, "Board dimension")
	shipLengths := flag.String("ship-lengths", "5,4,3,3,2", "Comma-separated ship lengths")
	skew := flag.Bool("skew", true, "Enable the hit-adjacency skew pass")
	skewFactor := flag.Int("skew-factor", 10, "Skew multiplier for cells next to open hits")
	delayMs := flag.Int("delay-ms", 250, "Server-side pacing between shots")
	replayPath := flag.String("replay-db", "", "Optional SQLite archive to record the watched game into")
	quiet := flag.Bool("quiet", false, "Suppress the per-shot board dump")
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("Bad -url: %v", err)
	}
	q := u.Query()
	if *seed != 0 {
		q.Set("seed", strconv.FormatInt(*seed, 10))
	}
	q.Set("board_size", strconv.Itoa(*boardSize))
	q.Set("ship_lengths", *shipLengths)
	q.Set("skew", strconv.FormatBool(*skew))
	q.Set("skew_factor", strconv.Itoa(*skewFactor))
	q.Set("delay_ms", strconv.Itoa(*delayMs))
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", u.String(), err)
	}
	defer conn.Close()

	// Interrupt closes the connection, which unblocks the read loop.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interrupted")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	// Reads must outlast the server's pacing between shots.
	readTimeout := 30 * time.Second
	if d := 4 * time.Duration(*delayMs) * time.Millisecond; d > readTimeout {
		readTimeout = d
	}

	log.Printf("Watching %s", u.String())

	var (
		gameID   string
		gameSeed int64
		frames   []replay.Frame
		shots    int32
		done     bool
	)

	for !done {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			log.Printf("Stream ended: %v", err)
			break
		}

		var frame liveFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("Failed to parse frame: %v", err)
			continue
		}
		gameID = frame.GameID
		gameSeed = frame.Seed

		switch frame.Type {
		case "shot":
			shots = frame.ShotIdx + 1
			frames = append(frames, replay.Frame{GameID: frame.GameID, ShotIdx: frame.ShotIdx, Payload: message})
			if !*quiet {
				printFrame(frame)
			}
		case "done":
			done = true
		}
	}

	if gameID == "" {
		log.Fatalf("No frames received")
	}
	log.Printf("Game %s complete: %d shots (seed=%d)", gameID, shots, gameSeed)

	if *replayPath != "" {
		if err := archiveWatched(*replayPath, gameID, gameSeed, int32(*boardSize), *shipLengths, shots, frames); err != nil {
			log.Fatalf("Failed to archive game: %v", err)
		}
		log.Printf("Game archived to: %s", *replayPath)
	}
}

func printFrame(frame liveFrame) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nShot %3d at (%d,%d): %-4s score=%d hits=%d/%d ships=%d\n",
		frame.ShotIdx, frame.X, frame.Y, frame.Result, frame.ScoreCount,
		frame.Hits, frame.RequiredHits, frame.ShipsRemaining))

	size := boardSide(len(frame.Cells))
	for y := int32(0); y < size; y++ {
		for x := int32(0); x < size; x++ {
			sym, ok := cellSymbols[frame.Cells[y*size+x]]
			if !ok {
				sym = "?"
			}
			sb.WriteString(sym + " ")
		}
		sb.WriteString("\n")
	}
	fmt.Print(sb.String())
}

// boardSide recovers the board dimension from a row-major cell slice.
func boardSide(n int) int32 {
	for s := int32(1); int(s)*int(s) <= n; s++ {
		if int(s)*int(s) == n {
			return s
		}
	}
	return 0
}

func archiveWatched(path, gameID string, seed int64, boardSize int32, lengths string, shots int32, frames []replay.Frame) error {
	db, err := replay.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	exists, err := db.GameExists(gameID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Game %s already archived; skipping", gameID)
		return nil
	}

	return db.InsertGame(replay.Game{
		ID:          gameID,
		Seed:        seed,
		BoardSize:   boardSize,
		ShipLengths: lengths,
		Shots:       shots,
	}, frames)
}
