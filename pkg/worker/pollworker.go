package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/clients/telemetry"
	"topology-impact-engine/pkg/config"
)

// PollWorker periodically snapshots the graph provider's live metrics into
// InfluxDB so the telemetry overlay has history to aggregate over.
type PollWorker struct {
	graphClient *graph.Client
	telemetry   *telemetry.Client
	interval    time.Duration
	log         *slog.Logger

	runLock sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewPollWorker(cfg *config.Config, graphClient *graph.Client, tc *telemetry.Client) *PollWorker {
	interval := time.Duration(cfg.TelemetryWorker.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}
	return &PollWorker{
		graphClient: graphClient,
		telemetry:   tc,
		interval:    interval,
		log:         slog.Default().With("component", "poll-worker"),
	}
}

// Start launches the poll loop. Safe to call once; a second Start while
// running is a no-op.
func (w *PollWorker) Start() {
	w.runLock.Lock()
	defer w.runLock.Unlock()
	if w.stopCh != nil {
		return
	}

	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.run(w.stopCh)
	w.log.Info("telemetry poll worker started", "interval", w.interval.String())
}

// Stop signals the loop to exit and waits for the in-flight poll to finish.
func (w *PollWorker) Stop() {
	w.runLock.Lock()
	stopCh := w.stopCh
	w.stopCh = nil
	w.runLock.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	w.wg.Wait()
	w.log.Info("telemetry poll worker stopped")
}

func (w *PollWorker) run(stopCh chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First poll right away so the overlay isn't empty for a full interval.
	w.poll()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *PollWorker) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := w.graphClient.MetricsSnapshot(ctx)
	if err != nil {
		w.log.Warn("metrics snapshot fetch failed, skipping poll cycle", "error", err)
		return
	}

	servicePoints := make([]telemetry.ServicePoint, 0, len(snapshot.Services))
	for _, svc := range snapshot.Services {
		point := telemetry.ServicePoint{
			Name:      svc.Name,
			Namespace: svc.Namespace,
		}
		// Zero-traffic services still record availability, but rate and
		// latency fields are left unset rather than written as zeroes.
		if svc.RPS > 0 {
			point.RequestRate = ptr(svc.RPS)
			point.ErrorRate = ptr(svc.ErrorRate)
			point.P95 = ptr(svc.P95)
		}
		point.Availability = ptr(svc.Availability.Value)
		servicePoints = append(servicePoints, point)
	}

	edgePoints := make([]telemetry.EdgePoint, 0, len(snapshot.Edges))
	for _, edge := range snapshot.Edges {
		if edge.RPS <= 0 {
			continue
		}
		edgePoints = append(edgePoints, telemetry.EdgePoint{
			From:        edge.From,
			To:          edge.To,
			Namespace:   edge.Namespace,
			RequestRate: ptr(edge.RPS),
			ErrorRate:   ptr(edge.ErrorRate),
			P95:         ptr(edge.P95),
		})
	}

	if err := w.telemetry.WriteServiceMetrics(ctx, servicePoints); err != nil {
		w.log.Warn("failed to write service metrics", "error", err, "points", len(servicePoints))
	}
	if err := w.telemetry.WriteEdgeMetrics(ctx, edgePoints); err != nil {
		w.log.Warn("failed to write edge metrics", "error", err, "points", len(edgePoints))
	}

	w.log.Debug("telemetry poll complete",
		"services", len(servicePoints),
		"edges", len(edgePoints),
		"window", snapshot.Window)
}

func ptr(v float64) *float64 { return &v }
