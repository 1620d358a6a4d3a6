package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"MSMA/cache"
	"MSMA/config"
	"MSMA/core/classifier"
	"MSMA/core/ingest"
	"MSMA/db"
	"MSMA/logger"
	"MSMA/repository"
	"MSMA/storage"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <trackID>",
	Short: "Run the ingestion pipeline for one track",
	Long: `Run the full ingestion pipeline synchronously for a single track id.
Useful for re-emitting an event that was dropped because the queue was full:
a track stuck in SUBMITTED is picked up and settled, an already settled
track is a no-op.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		trackID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("invalid track id %q: %v", args[0], err)
		}

		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
		defer logger.Sync()

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("failed to initialize MinIO: %v", err)
		}
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.CloseGormDB()
		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer cache.CloseRedis()

		trackRepo := repository.NewTrackRepository(db.GormDB)
		genreRepo := repository.NewGenreRepository(db.GormDB)
		resolver := ingest.NewGenreResolver(genreRepo, cache.NewGenreCache(cache.RedisClient))
		classifierClient := classifier.NewClient(cfg.ClassifierBaseURL, cfg.ClassifierTimeout)

		scratch, err := ingest.NewScratchStore(cfg.ScratchDir)
		if err != nil {
			log.Fatalf("failed to initialize scratch storage: %v", err)
		}

		orchestrator := ingest.NewOrchestrator(trackRepo, resolver, classifierClient, scratch)

		fmt.Printf("Running ingestion for track %d...\n", trackID)
		orchestrator.Process(context.Background(), trackID)

		track, err := trackRepo.FindByID(context.Background(), trackID)
		if err != nil {
			log.Fatalf("failed to re-read track: %v", err)
		}
		fmt.Printf("Track %d status: %s\n", trackID, track.Status)
		if track.StatusNote != "" {
			fmt.Printf("Note: %s\n", track.StatusNote)
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
