package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := StartServiceSpan(context.Background(), "requisition", "change_status",
		WithAttribute(SpanAttrRequisition, int64(15)),
		WithAttribute(SpanAttrTargetStatus, "approved"),
	)
	assert.NotEmpty(t, GetTraceID(ctx))
	RecordError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "requisition.change_status", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 2)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestSetAttributes_SkipsNonStringKeys(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "x")
	SetAttributes(span, "ok", true, 42, "ignored", "count", 3)
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Len(t, sr.Ended()[0].Attributes(), 2)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("GET", "/api/requisitions/15/", 200, 120*time.Millisecond)
	m.ObserveRequest("GET", "/api/requisitions/16/", 200, 80*time.Millisecond)
	m.ObserveRequest("POST", "/auth/jwt/refresh/", 0, time.Second)
	m.ObserveRefresh(RefreshSuccess)
	m.ObserveRefresh(RefreshFailure)
	m.ObserveRefresh(RefreshFailure)
	m.ObserveSessionExpired()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/requisitions/:id/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/auth/jwt/refresh/", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues(RefreshFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionExpired))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration, MetricRequestDurationSeconds), "one series per method and endpoint")
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveRefresh(RefreshSuccess)

	path := filepath.Join(t.TempDir(), "chemstock.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chemstock_token_refresh_total{result="success"} 1`)

	assert.NoError(t, m.WriteTextfile(""), "empty path disables the export")
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/facilities/", "/api/facilities/"},
		{"/api/facilities/12/", "/api/facilities/:id/"},
		{"/api/report-groups/0b8f3b8e-2d7a-4c55-9a5c-3f2a1a8b9c10/", "/api/report-groups/:id/"},
		{"/api/transactions/?chemical=3", "/api/transactions/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EndpointLabel(tt.in))
		})
	}
}
