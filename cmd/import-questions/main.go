package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
)

func main() {
	path := flag.String("file", "questions.json", "JSON array of {question, options, correctAnswer}")
	replace := flag.Bool("replace", false, "delete the current bank before importing")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Redis is only needed to drop the cached exam payload.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	questions := service.NewQuestionService(
		repository.NewQuestionRepository(pool),
		repository.NewQuestionCache(rdb),
		log,
	)

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Failed to open question file")
	}
	defer f.Close()

	if *replace {
		n, err := questions.DeleteAll(ctx)
		var notFound *service.NotFoundError
		switch {
		case errors.As(err, &notFound):
			fmt.Println("Bank was already empty")
		case err != nil:
			log.Fatal().Err(err).Msg("Failed to clear question bank")
		default:
			fmt.Printf("Deleted %d existing questions\n", n)
		}
	}

	n, err := questions.Import(ctx, f)
	if err != nil {
		var invalid *service.ValidationError
		if errors.As(err, &invalid) {
			fmt.Printf("Error: %s\n", invalid.Message)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Import failed")
	}

	total, err := questions.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count questions")
	}
	fmt.Printf("Imported %d questions (bank now holds %d)\n", n, total)
}
