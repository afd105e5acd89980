package localip

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"bindery/internal/config"
	"bindery/internal/services"
)

// Resolver reports the workstation's local IP on the scanning network.
type Resolver interface {
	LocalIP(ctx context.Context) (string, error)
}

// HTTPDoer describes the HTTP client used by the discovery resolver.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type resolver struct {
	endpoint string
	override string
	client   HTTPDoer

	mu     sync.Mutex
	cached string
}

// NewResolver returns a resolver for the configured discovery endpoint. An
// override IP short-circuits discovery entirely; with neither configured,
// LocalIP fails only when a locality check actually asks for it.
func NewResolver(cfg *config.Config) Resolver {
	r := &resolver{}
	if cfg == nil {
		return r
	}
	r.endpoint = strings.TrimRight(strings.TrimSpace(cfg.Locality.EndpointURL), "/")
	r.override = strings.TrimSpace(cfg.Locality.OverrideIP)
	timeout := time.Duration(cfg.Locality.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r.client = &http.Client{Timeout: timeout}
	return r
}

// NewStaticResolver returns a resolver pinned to one IP, for tests.
func NewStaticResolver(ip string) Resolver {
	return &resolver{override: ip}
}

func (r *resolver) LocalIP(ctx context.Context) (string, error) {
	if r.override != "" {
		return r.override, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != "" {
		return r.cached, nil
	}
	if r.endpoint == "" || r.client == nil {
		return "", services.Wrap(services.ErrConfiguration, "localip", "discover",
			"no locality endpoint or override IP configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/api/getip", nil)
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "localip", "discover", "build request", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "localip", "discover", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExternalService, "localip", "discover",
			"endpoint returned "+resp.Status, nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "localip", "discover", "read response", err)
	}

	ip := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if net.ParseIP(ip) == nil {
		return "", services.Wrap(services.ErrExternalService, "localip", "discover",
			"endpoint returned invalid IP "+strings.TrimSpace(string(body)), nil)
	}
	r.cached = ip
	return ip, nil
}
