package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bp-bling/BattleshipAI/logging"
	"github.com/bp-bling/BattleshipAI/replay"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", "127.0.0.1:8080", "HTTP listen address")
	dataDirs := fs.String("data-dirs", filepath.Join("data", "results"), "Comma-separated list of directories containing batch parquet files")
	replayPath := fs.String("replay-db", "", "Optional SQLite replay archive; enables /api/replay")
	debugDir := fs.String("debug-dir", "debug_games", "Directory containing debug game traces")
	staticDir := fs.String("static-dir", "", "Optional directory to serve as SPA static (e.g. viewer/web/dist)")
	refresh := fs.Duration("refresh", 30*time.Second, "How often the parquet views are refreshed")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parse: %v", err)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(logging.New(os.Stdout, level))

	roots := parseDataRoots(*dataDirs)
	slog.Info("viewer starting", "roots", strings.Join(roots, ","))

	var archive *replay.DB
	if strings.TrimSpace(*replayPath) != "" {
		var err error
		archive, err = replay.Open(*replayPath)
		if err != nil {
			log.Fatalf("open replay db: %v", err)
		}
		defer archive.Close()
	}

	server := NewServer(roots, *debugDir, archive, *refresh)
	defer server.Close()

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	if strings.TrimSpace(*staticDir) != "" {
		spa := spaHandler{staticPath: *staticDir, indexPath: filepath.Join(*staticDir, "index.html")}
		mux.Handle("/", spa)
		slog.Info("serving SPA", "dir", *staticDir)
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("viewer API listening", "addr", "http://"+*listen)
	log.Fatal(srv.ListenAndServe())
}

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Serve exact static asset if exists; otherwise serve index.html for client-side routing.
	path := filepath.Clean(r.URL.Path)
	if path == "/" {
		http.ServeFile(w, r, h.indexPath)
		return
	}
	candidate := filepath.Join(h.staticPath, strings.TrimPrefix(path, "/"))
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, candidate)
		return
	}
	// Fallback to SPA.
	http.ServeFile(w, r, h.indexPath)
}
