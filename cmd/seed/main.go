package main

import (
	"context"
	"log"
	"os"

	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/database"
	"github.com/inmanturbo/freestack/internal/password"
	"github.com/inmanturbo/freestack/internal/user"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// freestack-seed creates the initial admin account. Seeding is optional
// and typically runs once, unlike migrations which run on every startup.
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

	email := os.Getenv("SEED_ADMIN_EMAIL")
	if email == "" {
		email = "admin@freestack.local"
	}
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "ChangeMe123!"
		logger.Warn("using default admin password - set SEED_ADMIN_PASSWORD in production")
	}

	directory := user.NewPostgresDirectory(db)
	if _, err := directory.ByEmail(ctx, user.NormalizeEmail(email)); err == nil {
		logger.Info("admin account already present", zap.String("email", email))
		return
	}

	hash, err := password.NewHasher(cfg.Security).Hash(adminPassword)
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}
	if _, err := directory.Create(ctx, user.NormalizeEmail(email), "Administrator", hash); err != nil {
		logger.Fatal("create admin", zap.Error(err))
	}

	logger.Info("seeding completed", zap.String("email", email))
}
