package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	"github.com/AlibekovAA/personal-manager/backend/internal/migrations"
)

func main() {
	command := flag.String("command", "up", "migration command: up, down or version")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_DIR"), "migrator", os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatalf("DATABASE_URL is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "up":
		if err := migrations.Up(ctx, databaseURL); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Infof("migrations: up OK")
	case "down":
		if err := migrations.Down(ctx, databaseURL); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Infof("migrations: down OK")
	case "version":
		version, err := migrations.Version(ctx, databaseURL)
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		log.Infof("migrations: current version %d", version)
	default:
		log.Fatalf("unknown command %q", *command)
	}
}
