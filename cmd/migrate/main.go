package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"competition-voting/internal/platform/database"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	dsn := flag.String("dsn", "", "database DSN (defaults to DB_DSN)")
	flag.Parse()

	_ = godotenv.Load()
	if *dsn == "" {
		*dsn = os.Getenv("DB_DSN")
	}
	if *dsn == "" {
		slog.Error("DB_DSN is required")
		os.Exit(1)
	}

	var err error
	if *down > 0 {
		err = database.Rollback(*dsn, *down)
	} else {
		err = database.Migrate(*dsn)
	}
	if err != nil {
		slog.Error("migration failed", "err", err)
		os.Exit(1)
	}
	slog.Info("migrations done", "down", *down)
}
