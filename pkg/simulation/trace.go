package simulation

import "time"

// Stage names recorded by the pipeline trace.
const (
	StageScenarioParse     = "scenario-parse"
	StageStalenessCheck    = "staleness-check"
	StageFetchNeighborhood = "fetch-neighborhood"
	StageBuildSnapshot     = "build-snapshot"
	StagePathAnalysis      = "path-analysis"
	StageComputeImpact     = "compute-impact"
	StageRecommendations   = "recommendations"
)

// Tracer times named pipeline stages. The no-op implementation makes tracing
// a construction decision rather than a conditional at every call site.
type Tracer interface {
	Start(name string) Stage
	// Result returns the accumulated trace, nil when tracing is disabled.
	Result() *PipelineTrace
}

// Stage records a small per-stage summary and warnings, then End stops the
// timer.
type Stage interface {
	Summarize(key string, value any)
	Warn(msg string)
	End()
}

type PipelineTrace struct {
	Stages  []StageTrace `json:"stages"`
	TotalMs float64      `json:"totalMs"`
}

type StageTrace struct {
	Name       string         `json:"name"`
	DurationMs float64        `json:"durationMs"`
	Summary    map[string]any `json:"summary,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// NewTracer returns a recording tracer when enabled, otherwise the shared
// no-op.
func NewTracer(enabled bool) Tracer {
	if !enabled {
		return nopTracer{}
	}
	return &pipelineTracer{started: time.Now()}
}

type pipelineTracer struct {
	started time.Time
	stages  []StageTrace
}

func (t *pipelineTracer) Start(name string) Stage {
	return &stageRecorder{tracer: t, name: name, started: time.Now()}
}

func (t *pipelineTracer) Result() *PipelineTrace {
	return &PipelineTrace{
		Stages:  t.stages,
		TotalMs: roundMs(time.Since(t.started)),
	}
}

type stageRecorder struct {
	tracer   *pipelineTracer
	name     string
	started  time.Time
	summary  map[string]any
	warnings []string
	ended    bool
}

func (s *stageRecorder) Summarize(key string, value any) {
	if s.summary == nil {
		s.summary = make(map[string]any)
	}
	s.summary[key] = value
}

func (s *stageRecorder) Warn(msg string) {
	s.warnings = append(s.warnings, msg)
}

func (s *stageRecorder) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.tracer.stages = append(s.tracer.stages, StageTrace{
		Name:       s.name,
		DurationMs: roundMs(time.Since(s.started)),
		Summary:    s.summary,
		Warnings:   s.warnings,
	})
}

func roundMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

type nopTracer struct{}

func (nopTracer) Start(string) Stage     { return nopStage{} }
func (nopTracer) Result() *PipelineTrace { return nil }

type nopStage struct{}

func (nopStage) Summarize(string, any) {}
func (nopStage) Warn(string)           {}
func (nopStage) End()                  {}
