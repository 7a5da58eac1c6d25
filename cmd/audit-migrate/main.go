package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cclastrib/backend/internal/infrastructure/config"
	"github.com/cclastrib/backend/internal/infrastructure/logger"
	"github.com/cclastrib/backend/internal/infrastructure/persistence"
)

// audit-migrate creates or updates the classification audit schema.
// The server runs the same migration on startup when audit is enabled;
// this tool exists for deployments that migrate before rollout.
func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	log.Info("Audit schema migrated",
		zap.String("driver", cfg.Database.Driver),
		zap.String("table", "classification_records"))
}
