package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"topology-impact-engine/pkg/common"
	"topology-impact-engine/pkg/config"
	"topology-impact-engine/pkg/metrics"
)

// AllowedCentralityMetrics enumerates the metrics the provider computes.
var AllowedCentralityMetrics = []string{"pagerank", "betweenness"}

// Client is the typed adapter over the graph provider's HTTP API. All
// failures come back as *Error so callers can branch on Kind.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.GraphAPIConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		log: slog.Default().With("component", "graph-client"),
	}
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/graph/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Services returns the provider's service inventory without placement detail.
func (c *Client) Services(ctx context.Context) ([]ServiceInfo, error) {
	services, err := c.ServicesWithPlacement(ctx)
	if err != nil {
		return nil, err
	}
	for i := range services {
		services[i].Placement = ServicePlacement{}
	}
	return services, nil
}

// ServicesWithPlacement returns services including per-node placement data,
// which the add-service simulator consumes.
func (c *Client) ServicesWithPlacement(ctx context.Context) ([]ServiceInfo, error) {
	var wrapper struct {
		Services []ServiceInfo `json:"services"`
	}
	if err := c.get(ctx, "/services", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Services, nil
}

// Neighborhood fetches the k-hop subgraph around serviceName.
func (c *Client) Neighborhood(ctx context.Context, serviceName string, k int) (*NeighborhoodResponse, error) {
	path := fmt.Sprintf("/services/%s/neighborhood?k=%d", url.PathEscape(serviceName), k)
	var resp NeighborhoodResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Center == "" {
		return nil, newError(ErrDecode, "neighborhood payload missing center")
	}
	return &resp, nil
}

// CentralityTop returns the top-N services by the given centrality metric.
// The metric is validated before any request goes out.
func (c *Client) CentralityTop(ctx context.Context, metric string, limit int) (*CentralityTopResponse, error) {
	valid := false
	for _, m := range AllowedCentralityMetrics {
		if metric == m {
			valid = true
			break
		}
	}
	if !valid {
		return nil, newError(ErrDecode, "invalid centrality metric %q, allowed: %s",
			metric, strings.Join(AllowedCentralityMetrics, ", "))
	}

	path := fmt.Sprintf("/centrality/top?metric=%s&limit=%d", url.QueryEscape(metric), limit)
	var resp CentralityTopResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Metric == "" {
		return nil, newError(ErrDecode, "centrality payload missing metric")
	}
	return &resp, nil
}

func (c *Client) CentralityScores(ctx context.Context) (*CentralityScoresResponse, error) {
	var resp CentralityScoresResponse
	if err := c.get(ctx, "/centrality", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MetricsSnapshot(ctx context.Context) (*MetricsSnapshotResponse, error) {
	var resp MetricsSnapshotResponse
	if err := c.get(ctx, "/metrics/snapshot", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	fullURL := c.baseURL + path
	endpoint := endpointLabel(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return newError(ErrUnreachable, "build request for %s: %v", redactURL(fullURL), err)
	}
	if cid := common.CorrelationID(ctx); cid != "" {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := ErrUnreachable
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = ErrTimeout
		}
		metrics.ObserveProviderCall(endpoint, string(kind))
		c.log.Warn("provider request failed", "url", redactURL(fullURL), "kind", kind)
		return newError(kind, "GET %s: %v", redactURL(fullURL), redactedErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveProviderCall(endpoint, string(ErrHTTP))
		c.log.Warn("provider returned error status", "url", redactURL(fullURL), "status", resp.StatusCode)
		return &Error{
			Kind:       ErrHTTP,
			Message:    fmt.Sprintf("GET %s returned HTTP %d", redactURL(fullURL), resp.StatusCode),
			HTTPStatus: resp.StatusCode,
		}
	}

	// Unknown fields are ignored; only shape violations fail.
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		metrics.ObserveProviderCall(endpoint, string(ErrDecode))
		return newError(ErrDecode, "GET %s: invalid JSON payload: %v", redactURL(fullURL), err)
	}

	metrics.ObserveProviderCall(endpoint, "ok")
	return nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// redactedErr keeps transport errors from leaking query strings, which may
// carry tokens on some deployments.
func redactedErr(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Sprintf("%s %s: %v", ue.Op, redactURL(ue.URL), ue.Err)
	}
	return err.Error()
}

func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, "/services/") && strings.HasSuffix(path, "/neighborhood") {
		return "/services/{name}/neighborhood"
	}
	return path
}
