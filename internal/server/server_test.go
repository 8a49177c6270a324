package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ChuLiYu/cpu-sched/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const bufSize = 1 << 20

func startBufServer(t *testing.T, collector *metrics.Collector) *Client {
	t.Helper()
	return startBufServerWith(t, NewServer(nil, collector))
}

func startBufServerWith(t *testing.T, srv *Server) *Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer()
	Register(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func scenarioJobs() []any {
	return []any{
		map[string]any{"id": 1, "arrival": 0, "burst": 5},
		map[string]any{"id": 2, "arrival": 1, "burst": 3},
	}
}

func TestSimulate(t *testing.T) {
	client := startBufServer(t, nil)

	tests := []struct {
		name        string
		req         map[string]any
		elapsed     float64
		completions []any
	}{
		{
			name:    "fcfs",
			req:     map[string]any{"algorithm": "fcfs", "jobs": scenarioJobs()},
			elapsed: 8,
			completions: []any{
				map[string]any{"id": 1.0, "completion": 5.0},
				map[string]any{"id": 2.0, "completion": 8.0},
			},
		},
		{
			name:    "srjf ignores quantum",
			req:     map[string]any{"algorithm": "srjf", "quantum": 9, "jobs": scenarioJobs()},
			elapsed: 8,
			completions: []any{
				map[string]any{"id": 1.0, "completion": 8.0},
				map[string]any{"id": 2.0, "completion": 4.0},
			},
		},
		{
			name:    "round robin",
			req:     map[string]any{"algorithm": "rr", "quantum": 2, "jobs": scenarioJobs()},
			elapsed: 8,
			completions: []any{
				map[string]any{"id": 1.0, "completion": 8.0},
				map[string]any{"id": 2.0, "completion": 7.0},
			},
		},
		{
			name:        "empty job list",
			req:         map[string]any{"algorithm": "rr", "quantum": 1},
			elapsed:     0,
			completions: []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Simulate(context.Background(), mustStruct(t, tt.req))
			require.NoError(t, err)

			got := resp.AsMap()
			assert.Equal(t, tt.elapsed, got["elapsed"])
			assert.Equal(t, tt.completions, got["completions"])
			assert.NotContains(t, got, "events")
		})
	}
}

func TestSimulateTrace(t *testing.T) {
	client := startBufServer(t, nil)

	resp, err := client.Simulate(context.Background(), mustStruct(t, map[string]any{
		"algorithm": "rr",
		"quantum":   2,
		"trace":     true,
		"jobs":      scenarioJobs(),
	}))
	require.NoError(t, err)

	got := resp.AsMap()
	assert.Equal(t, "rr", got["algorithm"])
	assert.Equal(t, 2.0, got["quantum"])
	assert.Equal(t, 3.0, got["requeues"])

	events, ok := got["events"].([]any)
	require.True(t, ok)
	assert.Equal(t, "At time 0, job 1 READY", events[0])
	assert.Equal(t, "At time 8, job 1 RUNNING->TERMINATED", events[len(events)-1])
}

func TestSimulateInvalidArgument(t *testing.T) {
	client := startBufServer(t, nil)

	tests := []struct {
		name string
		req  map[string]any
	}{
		{"missing algorithm", map[string]any{"jobs": scenarioJobs()}},
		{"unknown algorithm", map[string]any{"algorithm": "lottery"}},
		{"rr without quantum", map[string]any{"algorithm": "rr"}},
		{"rr zero quantum", map[string]any{"algorithm": "rr", "quantum": 0}},
		{"fractional quantum", map[string]any{"algorithm": "rr", "quantum": 1.5}},
		{"string quantum", map[string]any{"algorithm": "rr", "quantum": "2"}},
		{"job not an object", map[string]any{"algorithm": "fcfs", "jobs": []any{1}}},
		{"missing burst", map[string]any{"algorithm": "fcfs", "jobs": []any{
			map[string]any{"id": 1, "arrival": 0},
		}}},
		{"negative burst", map[string]any{"algorithm": "srjf", "jobs": []any{
			map[string]any{"id": 1, "arrival": 0, "burst": -1},
		}}},
		{"negative arrival", map[string]any{"algorithm": "srjf", "jobs": []any{
			map[string]any{"id": 1, "arrival": -3, "burst": 1},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Simulate(context.Background(), mustStruct(t, tt.req))
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestSimulateRejectsOversizedRequests(t *testing.T) {
	client := startBufServerWith(t, NewServer(nil, nil).WithLimits(Limits{MaxJobs: 3, MaxTicks: 100}))

	manyJobs := make([]any, 4)
	for i := range manyJobs {
		manyJobs[i] = map[string]any{"id": i + 1, "arrival": 0, "burst": 1}
	}

	tests := []struct {
		name string
		req  map[string]any
	}{
		{"huge burst", map[string]any{"algorithm": "srjf", "jobs": []any{
			map[string]any{"id": 1, "arrival": 0, "burst": 300000000},
		}}},
		{"late arrival", map[string]any{"algorithm": "fcfs", "jobs": []any{
			map[string]any{"id": 1, "arrival": 95, "burst": 6},
		}}},
		{"bursts add up", map[string]any{"algorithm": "rr", "quantum": 1, "jobs": []any{
			map[string]any{"id": 1, "arrival": 0, "burst": 60},
			map[string]any{"id": 2, "arrival": 1, "burst": 41},
		}}},
		{"too many jobs", map[string]any{"algorithm": "fcfs", "jobs": manyJobs}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := client.Simulate(ctx, mustStruct(t, tt.req))
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}

	resp, err := client.Simulate(context.Background(), mustStruct(t, map[string]any{
		"algorithm": "srjf",
		"jobs": []any{
			map[string]any{"id": 1, "arrival": 50, "burst": 25},
			map[string]any{"id": 2, "arrival": 0, "burst": 25},
		},
	}))
	require.NoError(t, err, "a horizon of exactly MaxTicks is accepted")
	assert.Equal(t, 75.0, resp.AsMap()["elapsed"])
}

func TestDefaultLimitsRejectHugeBurst(t *testing.T) {
	_, err := NewServer(nil, nil).Simulate(context.Background(), mustStruct(t, map[string]any{
		"algorithm": "srjf",
		"jobs":      []any{map[string]any{"id": 1, "arrival": 0, "burst": 300000000}},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	assert.Equal(t, DefaultLimits, NewServer(nil, nil).WithLimits(Limits{}).limits)
}

func TestSimulateDirectNilRequest(t *testing.T) {
	_, err := NewServer(nil, nil).Simulate(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewServer(nil, nil).Simulate(ctx, mustStruct(t, map[string]any{"algorithm": "fcfs"}))
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestSimulateRecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	client := startBufServer(t, collector)

	for i := 0; i < 3; i++ {
		_, err := client.Simulate(context.Background(), mustStruct(t, map[string]any{
			"algorithm": "fcfs",
			"jobs":      scenarioJobs(),
		}))
		require.NoError(t, err)
	}

	n, err := testutil.GatherAndCount(collector.Registry(), "sched_job_turnaround_ticks")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// ============================================================================
// HTTP Tests
// ============================================================================

func TestRouter(t *testing.T) {
	collector := metrics.NewCollector()
	srv := httptest.NewServer(NewRouter(collector))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sched_requeues_total 0")

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouterWithoutMetrics(t *testing.T) {
	srv := httptest.NewServer(NewRouter(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeListenersShutdown(t *testing.T) {
	grpcLis := bufconn.Listen(bufSize)
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveListeners(ctx, grpcLis, httpLis, Options{Metrics: metrics.NewCollector()})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + httpLis.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
