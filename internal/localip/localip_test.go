package localip_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bindery/internal/config"
	"bindery/internal/localip"
	"bindery/internal/services"
)

func TestLocalIPCachesDiscovery(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/getip" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		calls++
		_, _ = w.Write([]byte("10.0.0.42"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Locality.EndpointURL = server.URL
	resolver := localip.NewResolver(&cfg)

	for i := 0; i < 3; i++ {
		ip, err := resolver.LocalIP(context.Background())
		if err != nil {
			t.Fatalf("LocalIP failed: %v", err)
		}
		if ip != "10.0.0.42" {
			t.Fatalf("unexpected IP %q", ip)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one discovery call, got %d", calls)
	}
}

func TestLocalIPOverrideSkipsEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Locality.OverrideIP = "192.168.1.7"
	cfg.Locality.EndpointURL = "http://unreachable.invalid"
	resolver := localip.NewResolver(&cfg)

	ip, err := resolver.LocalIP(context.Background())
	if err != nil {
		t.Fatalf("LocalIP failed: %v", err)
	}
	if ip != "192.168.1.7" {
		t.Fatalf("unexpected IP %q", ip)
	}
}

func TestLocalIPUnconfigured(t *testing.T) {
	cfg := config.Default()
	resolver := localip.NewResolver(&cfg)

	_, err := resolver.LocalIP(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLocalIPRejectsGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not an ip</html>"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Locality.EndpointURL = server.URL
	resolver := localip.NewResolver(&cfg)

	_, err := resolver.LocalIP(context.Background())
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}
