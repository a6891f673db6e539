package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	_ "time/tzdata"

	"github.com/asifchowdhury1/studysync/internal/auth"
	"github.com/asifchowdhury1/studysync/internal/config"
	"github.com/asifchowdhury1/studysync/internal/db"
	"github.com/asifchowdhury1/studysync/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("studysync %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`studysync %s - study session tracking server

Records timed study sessions against subjects and serves dashboards,
time-series, per-subject rollups, and study-pattern analytics over a
REST API backed by SQLite.

Usage:
  studysync [flags]          Start the server (default command)
  studysync serve [flags]    Start the server (explicit)
  studysync version          Show version information
  studysync help             Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8080)

Environment variables:
  STUDYSYNC_DATA_DIR   Data directory (database, config)
  STUDYSYNC_HOST       Host to bind to
  STUDYSYNC_PORT       Port to listen on

Data is stored in ~/.studysync/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	database := mustOpenDB(cfg)
	defer database.Close()

	secret, err := cfg.Secret()
	if err != nil {
		log.Fatalf("invalid token secret: %v", err)
	}
	database.SetCursorSecret(secret)
	signer := auth.NewTokenSigner(secret, cfg.TokenTTL)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, database, signer,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	fmt.Printf("studysync %s listening at http://%s:%d\n",
		version, cfg.Host, cfg.Port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("studysync", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: studysync [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustOpenDB(cfg config.Config) *db.DB {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	return database
}
