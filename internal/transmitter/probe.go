package transmitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
	"go.uber.org/zap"
)

const ProbeTimeout = 10 * time.Second

type ProbeResult struct {
	Reachable bool
	Status    int
	Message   string
}

type JwksCheck struct {
	Valid   bool
	Kids    []string
	Message string
}

// Prober runs the auxiliary reachability and JWKS checks, each bounded by ProbeTimeout.
type Prober struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewProber(httpClient *http.Client, logger *zap.Logger) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{httpClient: httpClient, logger: logger.Named("probe")}
}

// TestConnection sends a HEAD to the org's events endpoint. Any HTTP response, 4xx included, counts as reachable.
func (p *Prober) TestConnection(ctx context.Context, domain string) ProbeResult {
	host, err := SanitizeHost(domain)
	if err != nil {
		return ProbeResult{Status: http.StatusBadRequest, Message: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, Endpoint(host), nil)
	if err != nil {
		return ProbeResult{Status: http.StatusBadRequest, Message: err.Error()}
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", zap.String("host", host), zap.Error(err))
		if isTimeout(err) {
			return ProbeResult{Status: http.StatusRequestTimeout, Message: "request timeout: endpoint unreachable or too slow"}
		}
		return ProbeResult{Status: http.StatusServiceUnavailable, Message: "cannot reach endpoint, check domain"}
	}
	_ = resp.Body.Close()
	return ProbeResult{
		Reachable: true,
		Status:    resp.StatusCode,
		Message:   fmt.Sprintf("Okta endpoint reachable (HTTP %d)", resp.StatusCode),
	}
}

// VerifyJwks fetches jwksUrl and checks that some key carries expectedKid.
func (p *Prober) VerifyJwks(ctx context.Context, jwksUrl string, expectedKid string) JwksCheck {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksUrl, nil)
	if err != nil {
		return JwksCheck{Message: "could not reach URL: " + err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return JwksCheck{Message: "could not reach URL: " + err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return JwksCheck{Message: "could not reach URL: " + err.Error()}
	}

	kids, hasKeys, err := goSet.JwksKids(body)
	if err != nil {
		return JwksCheck{Message: "response is not valid JSON"}
	}
	if !hasKeys {
		return JwksCheck{Message: "JSON does not contain a 'keys' array"}
	}
	for _, kid := range kids {
		if kid == expectedKid {
			return JwksCheck{Valid: true, Kids: kids, Message: "JWKS verified, kid matches"}
		}
	}
	return JwksCheck{Kids: kids, Message: fmt.Sprintf("no key found with matching kid %q", expectedKid)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
