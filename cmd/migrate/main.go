package main

import (
	"context"
	"log"

	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/database"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// freestack-migrate applies the schema migrations and exits. The server
// also migrates on startup when FREESTACK_DB_RUN_MIGRATIONS is true; this
// binary exists for deploy hooks that migrate before rolling pods.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database connection", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}
	logger.Info("migrations completed")
}
