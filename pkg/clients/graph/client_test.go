package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"topology-impact-engine/pkg/common"
	"topology-impact-engine/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GraphAPIConfig{BaseURL: srv.URL, TimeoutMs: 2000})
}

func TestClientErrorKinds(t *testing.T) {
	t.Parallel()

	t.Run("unreachable provider", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := NewClient(config.GraphAPIConfig{BaseURL: srv.URL, TimeoutMs: 500})

		_, err := client.Health(context.Background())
		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		require.Equal(t, ErrUnreachable, gerr.Kind)
	})

	t.Run("slow provider times out", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		t.Cleanup(srv.Close)
		client := NewClient(config.GraphAPIConfig{BaseURL: srv.URL, TimeoutMs: 50})

		_, err := client.Health(context.Background())
		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		require.Equal(t, ErrTimeout, gerr.Kind)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		t.Parallel()

		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Health(context.Background())
		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		require.Equal(t, ErrHTTP, gerr.Kind)
		require.Equal(t, http.StatusBadGateway, gerr.HTTPStatus)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		})

		_, err := client.Health(context.Background())
		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		require.Equal(t, ErrDecode, gerr.Kind)
	})

	t.Run("neighborhood missing center", func(t *testing.T) {
		t.Parallel()

		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"nodes": []any{}, "edges": []any{}})
		})

		_, err := client.Neighborhood(context.Background(), "default:checkout", 2)
		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		require.Equal(t, ErrDecode, gerr.Kind)
	})
}

func TestClientCorrelationHeader(t *testing.T) {
	t.Parallel()

	var got string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-Id")
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	})

	ctx := common.WithCorrelationID(context.Background(), "corr-123")
	_, err := client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "corr-123", got)
}

func TestCentralityTopValidation(t *testing.T) {
	t.Parallel()

	called := false
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.CentralityTop(context.Background(), "degree", 5)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, ErrDecode, gerr.Kind)
	require.False(t, called, "invalid metric must not reach the provider")
}

func TestServicesStripsPlacement(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"services": []ServiceInfo{
				{
					Name:      "checkout",
					Namespace: "default",
					Placement: ServicePlacement{Nodes: []NodePlacement{{Node: "node-a"}}},
				},
			},
		})
	})

	services, err := client.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	require.Empty(t, services[0].Placement.Nodes)

	withPlacement, err := client.ServicesWithPlacement(context.Background())
	require.NoError(t, err)
	require.Len(t, withPlacement[0].Placement.Nodes, 1)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"token redacted",
			"http://graph:3000/services?token=s3cret",
			"http://graph:3000/services?token=REDACTED",
		},
		{
			"case insensitive",
			"http://graph:3000/services?API_KEY=abc&k=2",
			"http://graph:3000/services?API_KEY=REDACTED&k=2",
		},
		{
			"plain url untouched",
			"http://graph:3000/services?k=2",
			"http://graph:3000/services?k=2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, redactURL(tc.in))
		})
	}
}

func TestErrorMessagesOmitCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(config.GraphAPIConfig{BaseURL: srv.URL, TimeoutMs: 500})
	err := client.get(context.Background(), "/services?token=supersecret", &struct{}{})
	require.Error(t, err)
	require.NotContains(t, err.Error(), "supersecret")
}

func TestEndpointLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/graph/health", endpointLabel("/graph/health"))
	require.Equal(t, "/centrality/top", endpointLabel("/centrality/top?metric=pagerank&limit=5"))
	require.Equal(t, "/services/{name}/neighborhood", endpointLabel("/services/default:checkout/neighborhood?k=2"))
}

func TestFlexibleTypes(t *testing.T) {
	t.Parallel()

	t.Run("scalar int", func(t *testing.T) {
		t.Parallel()
		var v FlexibleInt
		require.NoError(t, json.Unmarshal([]byte("3"), &v))
		require.Equal(t, 3, v.Value)
		require.False(t, v.IsObject)
	})

	t.Run("low high object", func(t *testing.T) {
		t.Parallel()
		var v FlexibleInt
		require.NoError(t, json.Unmarshal([]byte(`{"low":2,"high":5}`), &v))
		require.Equal(t, 5, v.Value)
		require.True(t, v.IsObject)
	})

	t.Run("float scalar", func(t *testing.T) {
		t.Parallel()
		var v FlexibleFloat
		require.NoError(t, json.Unmarshal([]byte("0.99"), &v))
		require.InDelta(t, 0.99, v.Value, 0.0001)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		t.Parallel()
		var v FlexibleInt
		require.Error(t, json.Unmarshal([]byte(`"three"`), &v))
	})
}
