package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/toiletmap/internal/adapters/opendata"
	"github.com/samirrijal/toiletmap/internal/adapters/postgres"
	"github.com/samirrijal/toiletmap/internal/pkg/config"
	"github.com/samirrijal/toiletmap/internal/pkg/logging"
	"github.com/samirrijal/toiletmap/internal/pkg/telemetry"
	"github.com/samirrijal/toiletmap/internal/workflows"
)

const workflowID = "toiletmap-mirror-sync"

func main() {
	cfg, err := config.Load("toiletmap-mirror")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	source, err := opendata.New(cfg.OpenData)
	if err != nil {
		log.Fatalf("opendata client: %v", err)
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.MirrorWorkflow)
	w.RegisterActivity(&workflows.MirrorActivities{
		Source: source,
		Store:  postgres.NewToiletRepo(db),
	})

	if err := schedule(ctx, c, cfg.Temporal); err != nil {
		log.Fatalf("schedule mirror: %v", err)
	}

	slog.Info("mirror worker started", "queue", cfg.Temporal.TaskQueue, "interval", cfg.Temporal.Interval.String())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// schedule starts the recurring mirror run. A run already scheduled by
// another worker is left in place.
func schedule(ctx context.Context, c client.Client, cfg config.TemporalConfig) error {
	_, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           workflowID,
		TaskQueue:    cfg.TaskQueue,
		CronSchedule: fmt.Sprintf("@every %s", cfg.Interval),
	}, workflows.MirrorWorkflow, workflows.MirrorInput{PageSize: workflows.DefaultPageSize})

	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		slog.Info("mirror already scheduled", "workflow_id", workflowID)
		return nil
	}
	return err
}
