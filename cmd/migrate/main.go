package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/samirrijal/toiletmap/internal/adapters/postgres"
	"github.com/samirrijal/toiletmap/internal/pkg/config"
	"github.com/samirrijal/toiletmap/internal/pkg/logging"
)

var upFiles = []string{
	"migrations/001_init_extensions.sql",
	"migrations/002_toilets.sql",
}

var downFiles = []string{
	"migrations/002_toilets.down.sql",
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("toiletmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		run(ctx, db, upFiles)
	case "down":
		run(ctx, db, downFiles)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func run(ctx context.Context, db *postgres.DB, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		slog.Info("applied", "file", f)
	}

	slog.Info("migrations complete", "count", len(files))
}
