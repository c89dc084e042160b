package simulation

// Traffic thresholds driving the recommendation policy, in RPS.
const (
	TrafficCritical = 100.0
	TrafficHigh     = 50.0
	TrafficMedium   = 10.0
)

// ScalingBenefitFloorMs: scaling up below this projected improvement triggers
// a cost-efficiency recommendation.
const ScalingBenefitFloorMs = 10.0

type ServiceRef struct {
	ServiceID string `json:"serviceId"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

type NeighborhoodMeta struct {
	Description  string `json:"description"`
	ServiceCount int    `json:"serviceCount"`
	EdgeCount    int    `json:"edgeCount"`
	DepthUsed    int    `json:"depthUsed"`
	GeneratedAt  string `json:"generatedAt"`
}

type DataFreshness struct {
	Source                string `json:"source"`
	Stale                 bool   `json:"stale"`
	LastUpdatedSecondsAgo int    `json:"lastUpdatedSecondsAgo"`
	WindowMinutes         int    `json:"windowMinutes"`
}

// FailureRequest identifies the target either by canonical serviceId or by
// (name, namespace); both normalize to namespace:name before any fetch.
type FailureRequest struct {
	ServiceID string `json:"serviceId,omitempty"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	MaxDepth  int    `json:"maxDepth,omitempty"`
	Trace     bool   `json:"trace,omitempty"`
}

type FailureResult struct {
	Target              ServiceRef           `json:"target"`
	Neighborhood        NeighborhoodMeta     `json:"neighborhood"`
	DataFreshness       *DataFreshness       `json:"dataFreshness"`
	Confidence          string               `json:"confidence"`
	Explanation         string               `json:"explanation"`
	AffectedCallers     []CallerImpact       `json:"affectedCallers"`
	AffectedDownstream  []DownstreamImpact   `json:"affectedDownstream"`
	UnreachableServices []UnreachableImpact  `json:"unreachableServices"`
	CriticalPaths       []PathImpact         `json:"criticalPathsToTarget"`
	TotalLostTrafficRps float64              `json:"totalLostTrafficRps"`
	Recommendations     []Recommendation     `json:"recommendations"`
	Trace               *PipelineTrace       `json:"trace,omitempty"`
}

type CallerImpact struct {
	ServiceID      string  `json:"serviceId"`
	Name           string  `json:"name"`
	Namespace      string  `json:"namespace"`
	LostTrafficRps float64 `json:"lostTrafficRps"`
	EdgeErrorRate  float64 `json:"edgeErrorRate"`
}

type DownstreamImpact struct {
	ServiceID      string  `json:"serviceId"`
	Name           string  `json:"name"`
	Namespace      string  `json:"namespace"`
	LostTrafficRps float64 `json:"lostTrafficRps"`
	EdgeErrorRate  float64 `json:"edgeErrorRate"`
}

type UnreachableImpact struct {
	ServiceID                string  `json:"serviceId"`
	Name                     string  `json:"name"`
	Namespace                string  `json:"namespace"`
	LostTrafficRps           float64 `json:"lostTrafficRps"`
	LostFromTargetRps        float64 `json:"lostFromTargetRps"`
	LostFromReachableCutsRps float64 `json:"lostFromReachableCutsRps"`
}

// PathImpact is a caller→target path with its bottleneck throughput.
type PathImpact struct {
	Path    []string `json:"path"`
	PathRps float64  `json:"pathRps"`
}

type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Target   string `json:"target,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Action   string `json:"action,omitempty"`
}

type ScalingModel struct {
	Type  string   `json:"type"`
	Alpha *float64 `json:"alpha,omitempty"`
}

type ScalingRequest struct {
	ServiceID     string        `json:"serviceId,omitempty"`
	Name          string        `json:"name,omitempty"`
	Namespace     string        `json:"namespace,omitempty"`
	CurrentPods   int           `json:"currentPods"`
	NewPods       int           `json:"newPods"`
	LatencyMetric string        `json:"latencyMetric,omitempty"`
	Model         *ScalingModel `json:"model,omitempty"`
	MaxDepth      int           `json:"maxDepth,omitempty"`
	Trace         bool          `json:"trace,omitempty"`
}

type LatencyEstimate struct {
	Description string   `json:"description"`
	BaselineMs  *float64 `json:"baselineMs"`
	ProjectedMs *float64 `json:"projectedMs"`
	DeltaMs     *float64 `json:"deltaMs"`
	Unit        string   `json:"unit"`
}

type ScalingCallerImpact struct {
	ServiceID        string   `json:"serviceId"`
	Name             string   `json:"name"`
	Namespace        string   `json:"namespace"`
	HopDistance      int      `json:"hopDistance"`
	BeforeMs         *float64 `json:"beforeMs"`
	AfterMs          *float64 `json:"afterMs"`
	DeltaMs          *float64 `json:"deltaMs"`
	EndToEndBeforeMs *float64 `json:"endToEndBeforeMs"`
	EndToEndAfterMs  *float64 `json:"endToEndAfterMs"`
	EndToEndDeltaMs  *float64 `json:"endToEndDeltaMs"`
	ViaPath          []string `json:"viaPath,omitempty"`
}

type ScalingCallers struct {
	Description string                `json:"description"`
	Items       []ScalingCallerImpact `json:"items"`
}

type ScalingPathImpact struct {
	Path           []string `json:"path"`
	PathRps        float64  `json:"pathRps"`
	BeforeMs       *float64 `json:"beforeMs"`
	AfterMs        *float64 `json:"afterMs"`
	DeltaMs        *float64 `json:"deltaMs"`
	IncompleteData bool     `json:"incompleteData"`
}

type ScalingResult struct {
	Target           ServiceRef          `json:"target"`
	Neighborhood     NeighborhoodMeta    `json:"neighborhood"`
	DataFreshness    *DataFreshness      `json:"dataFreshness"`
	Confidence       string              `json:"confidence"`
	Explanation      string              `json:"explanation,omitempty"`
	Warnings         []string            `json:"warnings,omitempty"`
	LatencyMetric    string              `json:"latencyMetric"`
	ScalingModel     ScalingModel        `json:"scalingModel"`
	CurrentPods      int                 `json:"currentPods"`
	NewPods          int                 `json:"newPods"`
	ScalingDirection string              `json:"scalingDirection"`
	LatencyEstimate  LatencyEstimate     `json:"latencyEstimate"`
	AffectedCallers  ScalingCallers      `json:"affectedCallers"`
	AffectedPaths    []ScalingPathImpact `json:"affectedPaths"`
	Recommendations  []Recommendation    `json:"recommendations"`
	Trace            *PipelineTrace      `json:"trace,omitempty"`
}

type AddRequest struct {
	ServiceName  string          `json:"serviceName"`
	CPURequest   float64         `json:"cpuRequest"`
	RAMRequest   int             `json:"ramRequest"`
	Replicas     int             `json:"replicas"`
	Dependencies []DependencyRef `json:"dependencies,omitempty"`
}

type DependencyRef struct {
	ServiceID string `json:"serviceId"`
}

type AddResult struct {
	TargetServiceName string           `json:"targetServiceName"`
	Success           bool             `json:"success"`
	Confidence        string           `json:"confidence"`
	Explanation       string           `json:"explanation"`
	TotalCapacityPods int              `json:"totalCapacityPods"`
	SuitableNodes     []NodeCapacity   `json:"suitableNodes"`
	RiskAnalysis      AddRiskAnalysis  `json:"riskAnalysis"`
	Recommendations   []Recommendation `json:"recommendations"`
}

type NodeCapacity struct {
	Node           string  `json:"node"`
	CPUAvailable   float64 `json:"cpuAvailable"`
	RAMAvailableMB float64 `json:"ramAvailableMB"`
	CPUTotal       float64 `json:"cpuTotal"`
	RAMTotalMB     float64 `json:"ramTotalMB"`
	CanFit         bool    `json:"canFit"`
	MaxPods        int     `json:"maxPods"`
	Score          int     `json:"score"`
	Reason         string  `json:"reason,omitempty"`
}

type AddRiskAnalysis struct {
	DependencyRisk string `json:"dependencyRisk"`
	Description    string `json:"description"`
}

// GraphSnapshot is the immutable request-local view of the k-hop subgraph.
// Adjacency lists are sorted at build time; traversal never mutates them.
type GraphSnapshot struct {
	Nodes         map[string]*Node
	IncomingEdges map[string][]*Edge
	OutgoingEdges map[string][]*Edge
	Edges         []*Edge
	TargetKey     string
	DataFreshness *DataFreshness
}

type Node struct {
	Name      string
	Namespace string
}

type Edge struct {
	Source    string
	Target    string
	Rate      float64
	ErrorRate float64
	P50       *float64
	P95       *float64
	P99       *float64
}

// Latency returns the chosen percentile, nil when absent.
func (e *Edge) Latency(metric string) *float64 {
	switch metric {
	case "p50":
		return e.P50
	case "p95":
		return e.P95
	case "p99":
		return e.P99
	}
	return nil
}
