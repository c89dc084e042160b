package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"topology-impact-engine/pkg/config"
)

// Client wraps InfluxDB for the optional historical overlay: the poll worker
// writes provider snapshots in, the telemetry API reads aggregates out.
// With no Influx configuration the client stays inert and CheckStatus
// explains why.
type Client struct {
	influx     influxdb2.Client
	writeAPI   api.WriteAPIBlocking
	httpClient *http.Client
	cfg        *config.Config
}

type ServiceMetric struct {
	Timestamp    string  `json:"timestamp"`
	Service      string  `json:"service"`
	Namespace    string  `json:"namespace"`
	RequestRate  float64 `json:"requestRate"`
	ErrorRate    float64 `json:"errorRate"`
	P50          float64 `json:"p50"`
	P95          float64 `json:"p95"`
	P99          float64 `json:"p99"`
	Availability float64 `json:"availability"`
}

type EdgeMetric struct {
	Timestamp   string  `json:"timestamp"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Namespace   string  `json:"namespace"`
	RequestRate float64 `json:"requestRate"`
	ErrorRate   float64 `json:"errorRate"`
	P50         float64 `json:"p50"`
	P95         float64 `json:"p95"`
	P99         float64 `json:"p99"`
}

// ServicePoint carries optional fields; nil fields are simply not written.
type ServicePoint struct {
	Name         string
	Namespace    string
	RequestRate  *float64
	ErrorRate    *float64
	P50          *float64
	P95          *float64
	P99          *float64
	Availability *float64
}

type EdgePoint struct {
	From        string
	To          string
	Namespace   string
	RequestRate *float64
	ErrorRate   *float64
	P50         *float64
	P95         *float64
	P99         *float64
}

func NewClient(cfg *config.Config) *Client {
	if cfg.Influx.Host == "" || cfg.Influx.Token == "" {
		return &Client{cfg: cfg}
	}

	influx := influxdb2.NewClient(cfg.Influx.Host, cfg.Influx.Token)
	return &Client{
		influx:     influx,
		writeAPI:   influx.WriteAPIBlocking("default", cfg.Influx.Database),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
	}
}

func (c *Client) Close() {
	if c.influx != nil {
		c.influx.Close()
	}
}

// CheckStatus reports whether the overlay is usable and, if not, why.
func (c *Client) CheckStatus() (bool, string) {
	if !c.cfg.Telemetry.Enabled {
		return false, "Telemetry endpoints disabled. Set TELEMETRY_ENABLED=true to enable."
	}
	if c.influx == nil {
		return false, "InfluxDB not configured. Set INFLUX_HOST, INFLUX_TOKEN, INFLUX_DATABASE"
	}
	return true, ""
}

type influxQLResponse struct {
	Results []struct {
		Series []struct {
			Name    string            `json:"name"`
			Columns []string          `json:"columns"`
			Values  [][]any           `json:"values"`
			Tags    map[string]string `json:"tags"`
		} `json:"series"`
		Error string `json:"error,omitempty"`
	} `json:"results"`
	Error string `json:"error,omitempty"`
}

func (c *Client) queryInfluxQL(ctx context.Context, q string) (*influxQLResponse, error) {
	u, err := url.Parse(c.cfg.Influx.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid influx host: %w", err)
	}
	u.Path = "/query"
	query := u.Query()
	query.Set("db", c.cfg.Influx.Database)
	query.Set("q", q)
	query.Set("epoch", "ns")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.Influx.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("influx query failed (status %d): %s", resp.StatusCode, string(body))
	}

	var res influxQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("influx api error: %s", res.Error)
	}
	if len(res.Results) > 0 && res.Results[0].Error != "" {
		return nil, fmt.Errorf("influx query error: %s", res.Results[0].Error)
	}
	return &res, nil
}

func (c *Client) GetServiceMetrics(ctx context.Context, service, from, to string, stepSeconds int) ([]ServiceMetric, error) {
	where := fmt.Sprintf(`SELECT
		mean("request_rate") AS "avg_request_rate",
		mean("error_rate") AS "avg_error_rate",
		mean("p50") AS "avg_p50",
		mean("p95") AS "avg_p95",
		mean("p99") AS "avg_p99",
		mean("availability") AS "avg_availability"
		FROM "service_metrics"
		WHERE time >= '%s' AND time < '%s'`, from, to)
	if service != "" {
		where += fmt.Sprintf(` AND "service" = '%s'`, escapeString(service))
	}
	q := fmt.Sprintf(`%s GROUP BY time(%ds), "service", "namespace" fill(none)`, where, stepSeconds)

	res, err := c.queryInfluxQL(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []ServiceMetric
	forEachRow(res, func(tags map[string]string, get func(string) float64, ts string) {
		out = append(out, ServiceMetric{
			Timestamp:    ts,
			Service:      tags["service"],
			Namespace:    tags["namespace"],
			RequestRate:  get("avg_request_rate"),
			ErrorRate:    get("avg_error_rate"),
			P50:          get("avg_p50"),
			P95:          get("avg_p95"),
			P99:          get("avg_p99"),
			Availability: get("avg_availability"),
		})
	})
	return out, nil
}

func (c *Client) GetEdgeMetrics(ctx context.Context, fromSvc, toSvc, from, to string, stepSeconds int) ([]EdgeMetric, error) {
	where := fmt.Sprintf(`SELECT
		mean("request_rate") AS "avg_request_rate",
		mean("error_rate") AS "avg_error_rate",
		mean("p50") AS "avg_p50",
		mean("p95") AS "avg_p95",
		mean("p99") AS "avg_p99"
		FROM "edge_metrics"
		WHERE time >= '%s' AND time < '%s'`, from, to)
	if fromSvc != "" {
		where += fmt.Sprintf(` AND "from" = '%s'`, escapeString(fromSvc))
	}
	if toSvc != "" {
		where += fmt.Sprintf(` AND "to" = '%s'`, escapeString(toSvc))
	}
	q := fmt.Sprintf(`%s GROUP BY time(%ds), "from", "to", "namespace" fill(none)`, where, stepSeconds)

	res, err := c.queryInfluxQL(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []EdgeMetric
	forEachRow(res, func(tags map[string]string, get func(string) float64, ts string) {
		out = append(out, EdgeMetric{
			Timestamp:   ts,
			From:        tags["from"],
			To:          tags["to"],
			Namespace:   tags["namespace"],
			RequestRate: get("avg_request_rate"),
			ErrorRate:   get("avg_error_rate"),
			P50:         get("avg_p50"),
			P95:         get("avg_p95"),
			P99:         get("avg_p99"),
		})
	})
	return out, nil
}

// forEachRow flattens the nested InfluxQL response shape, handing each value
// row to fn with column lookup and a normalized timestamp.
func forEachRow(res *influxQLResponse, fn func(tags map[string]string, get func(string) float64, ts string)) {
	for _, result := range res.Results {
		for _, series := range result.Series {
			colIdx := make(map[string]int, len(series.Columns))
			for i, col := range series.Columns {
				colIdx[col] = i
			}

			for _, row := range series.Values {
				if len(row) != len(series.Columns) {
					continue
				}
				get := func(name string) float64 {
					idx, ok := colIdx[name]
					if !ok || row[idx] == nil {
						return 0
					}
					if f, ok := row[idx].(float64); ok {
						return f
					}
					return 0
				}
				ts := ""
				if idx, ok := colIdx["time"]; ok && row[idx] != nil {
					switch v := row[idx].(type) {
					case string:
						ts = v
					case float64:
						ts = time.Unix(0, int64(v)).UTC().Format(time.RFC3339)
					}
				}
				fn(series.Tags, get, ts)
			}
		}
	}
}

func (c *Client) WriteServiceMetrics(ctx context.Context, points []ServicePoint) error {
	if c.writeAPI == nil {
		return nil
	}
	now := time.Now()

	var batch []*write.Point
	for _, p := range points {
		fields := make(map[string]any)
		setField(fields, "request_rate", p.RequestRate)
		setField(fields, "error_rate", p.ErrorRate)
		setField(fields, "p50", p.P50)
		setField(fields, "p95", p.P95)
		setField(fields, "p99", p.P99)
		setField(fields, "availability", p.Availability)
		if len(fields) == 0 {
			continue
		}
		batch = append(batch, influxdb2.NewPoint("service_metrics",
			map[string]string{"service": p.Name, "namespace": p.Namespace},
			fields, now))
	}
	if len(batch) == 0 {
		return nil
	}
	return c.writeAPI.WritePoint(ctx, batch...)
}

func (c *Client) WriteEdgeMetrics(ctx context.Context, points []EdgePoint) error {
	if c.writeAPI == nil {
		return nil
	}
	now := time.Now()

	var batch []*write.Point
	for _, p := range points {
		fields := make(map[string]any)
		setField(fields, "request_rate", p.RequestRate)
		setField(fields, "error_rate", p.ErrorRate)
		setField(fields, "p50", p.P50)
		setField(fields, "p95", p.P95)
		setField(fields, "p99", p.P99)
		if len(fields) == 0 {
			continue
		}
		batch = append(batch, influxdb2.NewPoint("edge_metrics",
			map[string]string{"from": p.From, "to": p.To, "namespace": p.Namespace},
			fields, now))
	}
	if len(batch) == 0 {
		return nil
	}
	return c.writeAPI.WritePoint(ctx, batch...)
}

func setField(fields map[string]any, name string, v *float64) {
	if v != nil {
		fields[name] = *v
	}
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
