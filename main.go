package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/robalobadob/hangman/assets"
	"github.com/robalobadob/hangman/internal/config"
	"github.com/robalobadob/hangman/internal/db"
	"github.com/robalobadob/hangman/internal/httpserver"
	"github.com/robalobadob/hangman/internal/store"
	"github.com/robalobadob/hangman/internal/telemetry"
	"github.com/robalobadob/hangman/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	cmd := &cli.Command{
		Name:  "hangman-server",
		Usage: "HTTP server for the hangman word game",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Value: cfg.Port, Usage: "listen port"},
			&cli.StringFlag{Name: "db", Value: cfg.DBPath, Usage: "sqlite database file"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "trace, debug, info, warn or error"},
			&cli.StringFlag{Name: "words", Value: cfg.WordsFile, Usage: "word list file (embedded list when empty)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.Port = cmd.String("port")
			cfg.DBPath = cmd.String("db")
			cfg.LogLevel = cmd.String("log-level")
			cfg.WordsFile = cmd.String("words")
			return run(ctx, cfg)
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	setupLogging(cfg)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("tracing disabled")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	sqlDB, err := db.OpenAndMigrate(cfg.DBPath, assets.Migrations())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	list, err := words.Load(cfg.WordsFile)
	if err != nil {
		return err
	}
	log.Info().Int("words", list.Len()).Msg("word list loaded")

	srv := httpserver.New(cfg, httpserver.Deps{
		Store: store.NewMemoryStore(),
		Words: list,
		DB:    sqlDB,
	})
	defer srv.Close()
	log.Info().Str("port", cfg.Port).Msg("starting hangman server")
	return srv.Start(":" + cfg.Port)
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
