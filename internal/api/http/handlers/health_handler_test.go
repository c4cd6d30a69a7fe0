package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yzh317179958/customer-service-sub000/internal/observability"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newProbeApp(deps map[string]Pinger, metrics *observability.Metrics, lastScan func() *time.Time) *fiber.App {
	app := fiber.New()
	health := NewHealthHandler("cs-sla-engine", "test", deps, lastScan)
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/metrics", NewMetricsHandler(metrics).Snapshot)
	return app
}

func TestReadyProbe(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		deps   map[string]Pinger
		status int
	}{
		{name: "all up", deps: map[string]Pinger{"postgres": ok, "redis": ok}, status: fiber.StatusOK},
		{name: "redis down", deps: map[string]Pinger{"postgres": ok, "redis": down}, status: fiber.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newProbeApp(tt.deps, nil, nil)
			resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestLiveProbeReportsLastScan(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	app := newProbeApp(nil, nil, func() *time.Time { return &at })
	resp, err := app.Test(httptest.NewRequest("GET", "/health/live", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "alive" || body["last_sla_scan"] != "2026-03-01T09:00:00Z" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.RecordAlert("rt", "urgent")
	app := newProbeApp(nil, metrics, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var snap observability.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Alerts["rt|urgent"] != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
