package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/risa-org/gateway/metrics"
)

func TestMetricsRouterServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	m.Redirect()

	srv := httptest.NewServer(metricsRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "gateway_redirects_total 1") {
		t.Errorf("expected redirect counter in output, got:\n%s", body)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(metricsRouter(prometheus.NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSchemeDialerRejectsUnknownScheme(t *testing.T) {
	if _, err := (schemeDialer{}).Dial(context.Background(), "http://example.com"); err == nil {
		t.Error("expected error for http scheme")
	}
}
