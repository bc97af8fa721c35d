package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/api"
	"github.com/yourorg/calibr8/internal/db"
	"github.com/yourorg/calibr8/internal/logging"
	"github.com/yourorg/calibr8/internal/metrics"
	"github.com/yourorg/calibr8/internal/storage"
)

func main() {
	zl := logging.New(getEnv("LOG_LEVEL", "info"))
	defer zl.Sync()

	dbCfg := db.FromEnv()
	database, err := db.Open(dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	metrics.Init()

	// Archive uploaded masterlists when ARCHIVE_URI is set (file:///path or s3://bucket/prefix)
	var archive storage.Archive
	if base := os.Getenv("ARCHIVE_URI"); base != "" {
		store, err := storage.New(context.Background(), base)
		if err != nil {
			log.Fatalf("Failed to open archive %s: %v", base, err)
		}
		archive = storage.Archive{Store: store, Base: base}
	}

	// Temporal is optional; without it the async import routes are not mounted
	var temporalClient client.Client
	tc, err := client.Dial(client.Options{
		HostPort:  getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
	})
	if err != nil {
		zl.Warn("temporal unavailable, async imports disabled", zap.Error(err))
	} else {
		temporalClient = tc
		defer tc.Close()
	}

	maxUpload := api.DefaultMaxUploadBytes
	if v, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", ""), 10, 64); err == nil && v > 0 {
		maxUpload = v
	}

	r := api.NewRouter(api.Deps{
		DB:             database.DB,
		Archive:        archive,
		Temporal:       temporalClient,
		Log:            zl,
		MaxUploadBytes: maxUpload,
	})

	port := getEnv("PORT", "8000")
	zl.Info("server starting",
		zap.String("port", port),
		zap.Stringer("db", dbCfg),
		zap.String("archive", archive.Base),
		zap.Bool("temporal", temporalClient != nil))
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
