package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bp-bling/BattleshipAI/executor/density"
	"github.com/bp-bling/BattleshipAI/executor/selfplay"
	"github.com/bp-bling/BattleshipAI/rules"
	"github.com/bp-bling/BattleshipAI/store"
)

var totalShots atomic.Int64
var totalGames atomic.Int64
var gamesStarted atomic.Int64

type GameUpdate struct {
	WorkerID int
	Result   selfplay.GameResult
}

type gameWriteRequest struct {
	game  store.GameRow
	shots []store.ShotRow
}

type model struct {
	gamesPlayed int
	target      int64
	shots       int64
	startTime   time.Time
	recentGames []string
	updates     chan GameUpdate
}

func initialModel(target int64, updates chan GameUpdate) model {
	return model{
		target:    target,
		startTime: time.Now(),
		updates:   updates,
	}
}

type TickMsg time.Time

type batchDoneMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case batchDoneMsg:
		return m, tea.Quit
	case TickMsg:
		m.shots = totalShots.Load()
		return m, tickCmd()
	case GameUpdate:
		m.gamesPlayed++
		logMsg := fmt.Sprintf("Worker %d: game %s finished in %d shots (%s)",
			msg.WorkerID, msg.Result.GameID[:8], msg.Result.Shots, msg.Result.Duration.Round(time.Millisecond))
		m.recentGames = append([]string{logMsg}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	shotsPerSec := float64(m.shots) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		shotsPerSec = 0
	}
	meanShots := float64(0)
	if m.gamesPlayed > 0 {
		meanShots = float64(m.shots) / float64(m.gamesPlayed)
	}

	s := fmt.Sprintf("Games Played:  %d", m.gamesPlayed)
	if m.target > 0 {
		s += fmt.Sprintf(" / %d", m.target)
	}
	s += "\n"
	s += fmt.Sprintf("Total Shots:   %d\n", m.shots)
	s += fmt.Sprintf("Mean Shots:    %.2f\n", meanShots)
	s += fmt.Sprintf("Duration:      %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Games/Sec:     %.2f\n", gamesPerSec)
	s += fmt.Sprintf("Shots/Sec:     %.2f\n\n", shotsPerSec)

	s += "Recent Games:\n"
	for _, g := range m.recentGames {
		s += g + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}

func main() {
	outDir := flag.String("out-dir", getEnvOrDefault("BATTLESHIP_OUT_DIR", "data/results"), "Output directory for result parquet batches")
	workers := flag.Int("workers", getEnvIntOrDefault("BATTLESHIP_WORKERS", runtime.NumCPU()), "Number of concurrent game workers")
	games := flag.Int64("games", int64(getEnvIntOrDefault("BATTLESHIP_GAMES", 10000)), "Number of games to play (0 runs until interrupted)")
	gamesPerFlush := flag.Int("games-per-flush", 200, "Number of games to buffer per parquet flush")
	seed := flag.Int64("seed", 0, "Base RNG seed (0 derives one from the clock)")
	boardSize := flag.Int("board-size", 10, "Board dimension")
	shipLengths := flag.String("ship-lengths", "5,4,3,3,2", "Comma-separated ship lengths")
	skew := flag.Bool("skew", true, "Enable the hit-adjacency skew pass")
	skewFactor := flag.Int("skew-factor", 10, "Skew multiplier for cells next to open hits")
	tui := flag.Bool("tui", false, "Render a live terminal UI instead of plain logs")
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

	baseSeed := *seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	log.Printf("Starting batch: games=%d workers=%d board=%dx%d fleet=%s skew=%v seed=%d",
		*games, *workers, *boardSize, *boardSize, *shipLengths, *skew, baseSeed)

	updates := make(chan GameUpdate, *workers)
	writeReqs := make(chan gameWriteRequest, (*workers)*4)

	summaryCh := make(chan selfplay.Summary, 1)
	go func() {
		summaryCh <- parquetWriterLoop(*outDir, *gamesPerFlush, writeReqs)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerId int) {
			defer workerWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				ticket := gamesStarted.Add(1)
				if *games > 0 && ticket > *games {
					return
				}

				// A fixed per-ticket stride keeps a batch reproducible for
				// a seed no matter how many workers share it.
				gameSeed := baseSeed + (ticket-1)*1000003

				gameRow, shotRows, result, err := selfplay.PlayGame(ctx, workerId, cfg, gameSeed, func() {
					totalShots.Add(1)
				})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("Worker %d: game aborted: %v", workerId, err)
					continue
				}
				totalGames.Add(1)

				writeReqs <- gameWriteRequest{game: gameRow, shots: shotRows}

				// Avoid blocking shutdown if the UI loop stops consuming.
				select {
				case updates <- GameUpdate{WorkerID: workerId, Result: result}:
				default:
				}
			}
		}(i)
	}

	// End the run once every ticket has been played out.
	go func() {
		workerWG.Wait()
		cancel()
	}()

	if *tui {
		runTUI(ctx, *games, updates)
		cancel()
	} else {
		runLogTicker(ctx, updates)
	}

	workerWG.Wait()
	close(writeReqs)
	summary := <-summaryCh
	log.Printf("Batch complete: games=%d mean=%.2f median=%.1f min=%d max=%d shots=%d",
		summary.Games, summary.Mean, summary.Median, summary.Min, summary.Max, totalShots.Load())
}

func runTUI(ctx context.Context, target int64, updates chan GameUpdate) {
	p := tea.NewProgram(initialModel(target, updates), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Send(batchDoneMsg{})
	}()
	if _, err := p.Run(); err != nil {
		log.Printf("TUI error: %v", err)
	}
}

func runLogTicker(ctx context.Context, updates chan GameUpdate) {
	startTime := time.Now()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutdown requested; waiting for workers to finish current games...")
			return
		case update := <-updates:
			log.Printf("Worker %d: game %s finished in %d shots (%s)",
				update.WorkerID, update.Result.GameID[:8], update.Result.Shots, update.Result.Duration.Round(time.Millisecond))
		case <-ticker.C:
			duration := time.Since(startTime)
			games := totalGames.Load()
			shots := totalShots.Load()
			log.Printf("Stats: Games/s: %.2f, Shots/s: %.2f (games=%d)",
				float64(games)/duration.Seconds(), float64(shots)/duration.Seconds(), games)
		}
	}
}

// parquetWriterLoop buffers finished games and flushes them to parquet in
// batches. It returns the shot-count summary of everything it saw once the
// request channel closes.
func parquetWriterLoop(outDir string, gamesPerFlush int, in <-chan gameWriteRequest) selfplay.Summary {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 200
	}

	pendingGames := make([]store.GameRow, 0, gamesPerFlush)
	pendingShots := make([]store.ShotRow, 0, gamesPerFlush*64)
	counts := make([]int32, 0, 4096)

	flush := func(reason string) {
		if len(pendingGames) == 0 {
			return
		}
		gamesPath, err := store.WriteGamesBatchAtomic(outDir, pendingGames)
		if err != nil {
			log.Printf("Parquet flush failed (%s, games=%d): %v", reason, len(pendingGames), err)
		} else {
			log.Printf("Parquet flush ok (%s): %s (games=%d shots=%d)", reason, gamesPath, len(pendingGames), len(pendingShots))
		}
		if _, err := store.WriteShotsBatchAtomic(outDir, pendingShots); err != nil {
			log.Printf("Parquet shots flush failed (%s, rows=%d): %v", reason, len(pendingShots), err)
		}
		pendingGames = pendingGames[:0]
		pendingShots = pendingShots[:0]
	}

	for req := range in {
		pendingGames = append(pendingGames, req.game)
		pendingShots = append(pendingShots, req.shots...)
		counts = append(counts, req.game.Shots)

		if len(pendingGames) >= gamesPerFlush {
			flush("count")
		}
	}
	flush("final")

	return selfplay.Summarize(counts)
}

// Environment variable helpers
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}
