package main

import (
	"context"
	"flag"
	"log"

	"github.com/findirfin/ringil/internal/adapters/storage/sqlite"
	"github.com/findirfin/ringil/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Running database migrations for: %s", cfg.Database.Path)

	// Initialize storage adapter
	storage, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storage.Close()

	// Run migrations
	ctx := context.Background()
	if err := storage.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	applied, err := storage.AppliedMigrations(ctx)
	if err != nil {
		log.Fatalf("Failed to list migrations: %v", err)
	}
	for _, version := range applied {
		log.Printf("Applied: %s", version)
	}

	log.Println("Migrations completed successfully")
}
