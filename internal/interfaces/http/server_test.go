package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/landrecords/internal/container"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type fakeHealth struct {
	ready  bool
	status *container.HealthStatus
}

func (f *fakeHealth) Ready() bool { return f.ready }

func (f *fakeHealth) Health(ctx context.Context) *container.HealthStatus { return f.status }

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(rec, req)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth(t *testing.T) {
	s := NewServer(DefaultServerConfig(), &fakeHealth{}, nopLogger{})

	rec, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
}

func TestReady(t *testing.T) {
	healthy := &container.HealthStatus{
		Overall:    true,
		Components: map[string]container.ComponentHealth{"database": {Healthy: true}},
	}
	unhealthy := &container.HealthStatus{
		Overall:    false,
		Components: map[string]container.ComponentHealth{"storage": {Healthy: false, Message: "minio unreachable"}},
	}

	tests := []struct {
		name   string
		source *fakeHealth
		want   int
	}{
		{"not started", &fakeHealth{ready: false}, http.StatusServiceUnavailable},
		{"component down", &fakeHealth{ready: true, status: unhealthy}, http.StatusServiceUnavailable},
		{"ready", &fakeHealth{ready: true, status: healthy}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(DefaultServerConfig(), tt.source, nopLogger{})
			rec, body := get(t, s, "/ready")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.want == http.StatusOK, body.Success)
		})
	}
}

func TestNoBusinessRoutes(t *testing.T) {
	s := NewServer(DefaultServerConfig(), &fakeHealth{}, nopLogger{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddress(t *testing.T) {
	s := NewServer(ServerConfig{Host: "127.0.0.1", Port: 9000}, nil, nopLogger{})
	assert.Equal(t, "127.0.0.1:9000", s.Address())
}

func TestServeUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(DefaultServerConfig(), &fakeHealth{}, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ln.Addr().String(), s.BoundAddress())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
