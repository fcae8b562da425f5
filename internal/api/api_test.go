package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/batch-email/internal/pkg/httputil"
)

type stubHandler struct {
	got  []events.S3EventRecord
	resp httputil.Response
}

func (s *stubHandler) HandleEvent(_ context.Context, records []events.S3EventRecord) httputil.Response {
	s.got = records
	return s.resp
}

const s3Event = `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"batch/send/list.csv"}}}]}`

func newServer(t *testing.T, batch, templates EventHandler, health *HealthChecker, origins ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(SetupRoutes(NewHandlers(batch, templates, health), origins))
	t.Cleanup(srv.Close)
	return srv
}

func TestBatchEvent(t *testing.T) {
	batch := &stubHandler{resp: httputil.NewResponse(http.StatusPartialContent, "Batch partially processed", map[string]any{"FailedBatches": []any{}})}
	srv := newServer(t, batch, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/events/batch", "application/json", strings.NewReader(s3Event))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	var env httputil.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "Batch partially processed", env.Message)
	assert.Equal(t, `{"FailedBatches":[]}`, env.Body)

	require.Len(t, batch.got, 1)
	assert.Equal(t, "uploads", batch.got[0].S3.Bucket.Name)
	assert.Equal(t, "batch/send/list.csv", batch.got[0].S3.Object.Key)
}

func TestBatchEvent_NoContent(t *testing.T) {
	batch := &stubHandler{resp: httputil.NewResponse(http.StatusNoContent, "No valid targets found", nil)}
	srv := newServer(t, batch, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/events/batch", "application/json", strings.NewReader(s3Event))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestBatchEvent_InvalidJSON(t *testing.T) {
	batch := &stubHandler{}
	srv := newServer(t, batch, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/events/batch", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, batch.got)
}

func TestTemplateEvent(t *testing.T) {
	tmpl := &stubHandler{resp: httputil.NewResponse(http.StatusOK, "Successfully processed event", nil)}
	srv := newServer(t, &stubHandler{}, tmpl, nil)

	resp, err := http.Post(srv.URL+"/v1/events/template", "application/json", strings.NewReader(s3Event))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, tmpl.got, 1)

	srv = newServer(t, &stubHandler{}, nil, nil)
	resp2, err := http.Post(srv.URL+"/v1/events/template", "application/json", strings.NewReader(s3Event))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestHealth(t *testing.T) {
	hc := NewHealthChecker().
		Add("queue", true, func(context.Context) error { return nil }).
		Add("redis", false, func(context.Context) error { return errors.New("connection refused") })
	srv := newServer(t, &stubHandler{}, nil, hc)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "up", status.Checks["queue"].Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
}

func TestReadiness(t *testing.T) {
	hc := NewHealthChecker().Add("s3", true, func(context.Context) error { return errors.New("no such bucket") })
	srv := newServer(t, &stubHandler{}, nil, hc)

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	live, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	defer live.Body.Close()
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newServer(t, &stubHandler{}, nil, nil, "https://ops.example.com")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/events/batch", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://ops.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5_000_000_000))
	assert.Equal(t, "1m 1s", formatUptime(61_000_000_000))
}
