package main

import (
	"os"

	"github.com/andsome/alpo-core/internal/config"
	"github.com/andsome/alpo-core/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	source := os.Getenv("MIGRATIONS_PATH")
	if source == "" {
		source = "file://migrations"
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Msg("Running migrations")

	if err := postgres.RunMigrations(cfg.Database.DSN(), source); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
