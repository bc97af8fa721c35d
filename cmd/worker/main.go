package main

import (
	"context"
	"log"
	"os"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/activities"
	"github.com/yourorg/calibr8/internal/db"
	"github.com/yourorg/calibr8/internal/logging"
	"github.com/yourorg/calibr8/internal/metrics"
	"github.com/yourorg/calibr8/internal/storage"
	"github.com/yourorg/calibr8/internal/workflow"
)

func main() {
	// Support both TEMPORAL_TARGET_HOST and TEMPORAL_ADDRESS for compatibility
	taddr := getenv("TEMPORAL_TARGET_HOST", getenv("TEMPORAL_ADDRESS", "localhost:7233"))
	ns := getenv("TEMPORAL_NAMESPACE", "default")
	q := getenv("TEMPORAL_TASK_QUEUE", workflow.TaskQueue)

	zl := logging.New(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	metrics.Init()
	go func() {
		addr := metrics.AddrFromEnv()
		if err := metrics.Serve(addr); err != nil {
			zl.Error("metrics server stopped", zap.Error(err))
		}
	}()

	ctx := context.Background()
	dbCfg := db.FromEnv()
	database, err := db.Open(dbCfg)
	if err != nil {
		log.Fatal("database:", err)
	}
	defer database.Close()
	tags, closeTags, err := database.TagWriter(ctx, dbCfg)
	if err != nil {
		log.Fatal("tag writer:", err)
	}
	defer closeTags()

	store, err := storage.New(ctx, getenv("ARCHIVE_URI", "file:///"))
	if err != nil {
		log.Fatal("object store:", err)
	}

	c, err := client.Dial(client.Options{HostPort: taddr, Namespace: ns})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	w := worker.New(c, q, worker.Options{})
	acts := activities.New(activities.Config{
		Store:       store,
		Masterlists: db.NewMasterlistRepo(database.DB),
		Tags:        tags,
		Log:         zl,
	})
	// Register activities with explicit names matching workflow.ExecuteActivity calls
	w.RegisterActivityWithOptions(acts.ParseMasterlistFile, tactivity.RegisterOptions{Name: "Activities.ParseMasterlistFile"})
	w.RegisterActivityWithOptions(acts.SaveMasterlistTags, tactivity.RegisterOptions{Name: "Activities.SaveMasterlistTags"})
	w.RegisterWorkflowWithOptions(workflow.MasterlistImportWorkflow, workflow.RegisterOptions())

	zl.Info("worker started", zap.String("namespace", ns), zap.String("taskQueue", q), zap.String("metrics", metrics.AddrFromEnv()))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
