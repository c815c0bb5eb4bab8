package temporal

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/chainfeed/service/metrics"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// Temporal connection settings
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	// Dependencies
	Source    TransactionSource
	Store     StoreInterface     // optional
	Publisher PublisherInterface // optional
	Metrics   *metrics.Metrics   // optional
	Logger    *slog.Logger
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker connects to Temporal and registers the sync workflow and its
// activities on the configured task queue.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Source == nil {
		return nil, fmt.Errorf("worker requires a transaction source")
	}

	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     10,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	activities := NewActivities(
		config.Source,
		config.Store,
		config.Publisher,
		config.Metrics,
		logger,
	)
	register(w, activities)

	logger.Info("registered workflow and activities",
		"workflow", "SyncWalletWorkflow",
		"activities", []string{"FetchTransactions", "StoreTransactions", "PublishTransactions", "RecordBalance"},
	)

	return &Worker{
		client: c,
		worker: w,
		logger: logger,
	}, nil
}

// register adds the workflow and activities to r. Activities are registered
// by method name, matching the ExecuteActivity calls in the workflow.
func register(r worker.Registry, activities *Activities) {
	r.RegisterWorkflow(SyncWalletWorkflow)
	r.RegisterActivity(activities.FetchTransactions)
	r.RegisterActivity(activities.StoreTransactions)
	r.RegisterActivity(activities.PublishTransactions)
	r.RegisterActivity(activities.RecordBalance)
}

// Start begins processing workflows and activities.
// This method blocks until Stop is called or an interrupt is received.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	err := w.worker.Run(worker.InterruptCh())
	if err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}
