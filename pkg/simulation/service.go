package simulation

import (
	"context"
	"log/slog"
	"time"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/common"
	"topology-impact-engine/pkg/config"
	"topology-impact-engine/pkg/metrics"
)

// DecisionRecord is what the engine hands the sink after each simulation.
type DecisionRecord struct {
	Timestamp     string
	Type          string
	Scenario      any
	Result        any
	CorrelationID string
}

// DecisionSink is the narrow audit-log contract (C10). Implementations must
// be safe for concurrent use; persistence failures never fail a simulation.
type DecisionSink interface {
	LogDecision(ctx context.Context, rec DecisionRecord) error
}

// Service orchestrates simulations: wall-clock guard, metrics, decision
// logging. All collaborators are injected; nothing here is process-global.
type Service struct {
	cfg    *config.Config
	client *graph.Client
	sink   DecisionSink
	log    *slog.Logger
}

func NewService(cfg *config.Config, client *graph.Client, sink DecisionSink) *Service {
	return &Service{
		cfg:    cfg,
		client: client,
		sink:   sink,
		log:    slog.Default().With("component", "simulation"),
	}
}

func (s *Service) RunFailureSimulation(ctx context.Context, req FailureRequest) (*FailureResult, error) {
	started := time.Now()
	simCtx, cancel := s.guard(ctx)
	defer cancel()

	result, err := SimulateFailure(simCtx, s.client, s.cfg, req, NewTracer(req.Trace))
	err = s.classifyTimeout(simCtx, err)
	metrics.ObserveSimulation("failure", outcome(err), time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	s.record(ctx, "failure", req, result)
	return result, nil
}

func (s *Service) RunScalingSimulation(ctx context.Context, req ScalingRequest) (*ScalingResult, error) {
	started := time.Now()
	simCtx, cancel := s.guard(ctx)
	defer cancel()

	result, err := SimulateScaling(simCtx, s.client, s.cfg, req, NewTracer(req.Trace))
	err = s.classifyTimeout(simCtx, err)
	metrics.ObserveSimulation("scaling", outcome(err), time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	s.record(ctx, "scaling", req, result)
	return result, nil
}

func (s *Service) RunAddSimulation(ctx context.Context, req AddRequest) (*AddResult, error) {
	started := time.Now()
	simCtx, cancel := s.guard(ctx)
	defer cancel()

	result, err := SimulateAdd(simCtx, s.client, req, NewTracer(false))
	err = s.classifyTimeout(simCtx, err)
	metrics.ObserveSimulation("add", outcome(err), time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	s.record(ctx, "add", req, result)
	return result, nil
}

// guard races the whole simulation against the configured wall-clock budget,
// independent of the per-call provider timeout.
func (s *Service) guard(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.Simulation.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classifyTimeout converts a provider timeout into a simulation timeout when
// it was our own deadline that fired.
func (s *Service) classifyTimeout(simCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if simCtx.Err() == context.DeadlineExceeded {
		return &Error{Kind: KindSimulationTimeout, Message: "simulation exceeded its time budget"}
	}
	return err
}

func (s *Service) record(ctx context.Context, simType string, scenario, result any) {
	if s.sink == nil {
		return
	}
	rec := DecisionRecord{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Type:          simType,
		Scenario:      scenario,
		Result:        result,
		CorrelationID: common.CorrelationID(ctx),
	}
	if err := s.sink.LogDecision(ctx, rec); err != nil {
		// Audit logging is best-effort; the simulation already succeeded.
		s.log.Error("failed to log decision", "type", simType, "error", err)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
