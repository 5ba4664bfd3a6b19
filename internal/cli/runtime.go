package cli

import (
	"context"
	"fmt"
	"time"

	"rjdctl/internal/client"
	"rjdctl/internal/config"
	"rjdctl/internal/errors"
	"rjdctl/internal/formatters"
	"rjdctl/internal/input"
	"rjdctl/internal/observability"
	"rjdctl/internal/workflow"
)

// runtime is the object graph shared by the session commands
type runtime struct {
	cfg           *config.Config
	logger        *errors.Logger
	observability *observability.Manager
	service       *client.Client
	session       *workflow.Session
	formatters    *formatters.FormatterRegistry
}

func newRuntime(cfg *config.Config, logger *errors.Logger) (*runtime, error) {
	om, err := observability.NewManager(observability.ConfigFrom(cfg, Version), Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	metrics := om.Metrics()
	svc, err := client.New(cfg.Service, logger,
		client.WithRecorder(metrics),
		client.WithTracer(om.Tracer("rjdctl.client")))
	if err != nil {
		shutdownObservability(om, logger)
		return nil, err
	}

	collector := input.NewCollector(input.NewFileValidator(cfg.Input), logger)
	session := workflow.NewSession(collector, svc, svc, logger,
		workflow.WithObserver(func(operation string, state workflow.OperationState) {
			metrics.RecordTransition(context.Background(), operation, string(state.Status))
		}))

	return &runtime{
		cfg:           cfg,
		logger:        logger,
		observability: om,
		service:       svc,
		session:       session,
		formatters:    formatters.NewFormatterRegistry(),
	}, nil
}

func (rt *runtime) Close() {
	shutdownObservability(rt.observability, rt.logger)
}

func shutdownObservability(om *observability.Manager, logger *errors.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		logger.LogError(err, "Failed to shutdown observability")
	}
}
