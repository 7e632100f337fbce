package providers

import (
	"context"
	"fmt"
	"time"

	"AlphaFuse/internal/domain/models"
	dservice "AlphaFuse/internal/domain/service"
	xhttp "AlphaFuse/pkg/http"
)

// ProviderConfig describes one predictive system endpoint.
type ProviderConfig struct {
	SystemID string
	BaseURL  string
	Class    string
	Timeout  time.Duration
	Retries  int
}

// HTTPSignalProvider queries one predictive system over HTTP. Every system
// exposes the same contract: POST /signal with a symbol, answering with the
// signal fields.
type HTTPSignalProvider struct {
	cfg    ProviderConfig
	client *xhttp.Client
}

func NewHTTPSignalProvider(cfg ProviderConfig) *HTTPSignalProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPSignalProvider{
		cfg:    cfg,
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (p *HTTPSignalProvider) SystemID() string { return p.cfg.SystemID }

// Class returns the configured provider class name for registry wiring.
func (p *HTTPSignalProvider) Class() string { return p.cfg.Class }

type signalResponse struct {
	Confidence  float64 `json:"confidence"`
	Direction   int     `json:"direction"`
	Magnitude   float64 `json:"magnitude"`
	Reliability float64 `json:"reliability"`
	Timestamp   int64   `json:"ts"`
}

func (p *HTTPSignalProvider) GetSignal(ctx context.Context, symbol string) (models.Signal, error) {
	var resp signalResponse
	if err := p.postJSON(ctx, "/signal", map[string]string{"symbol": symbol}, &resp); err != nil {
		return models.Signal{}, fmt.Errorf("provider %s: %w", p.cfg.SystemID, err)
	}

	ts := time.Unix(resp.Timestamp, 0)
	if resp.Timestamp == 0 {
		ts = time.Now()
	}
	return models.Signal{
		SystemID:    p.cfg.SystemID,
		Symbol:      symbol,
		Confidence:  resp.Confidence,
		Direction:   models.Direction(resp.Direction),
		Magnitude:   resp.Magnitude,
		Reliability: resp.Reliability,
		Timestamp:   ts,
	}, nil
}

func (p *HTTPSignalProvider) postJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	attempts := p.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = p.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     p.cfg.BaseURL + path,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    payload,
		}, dest)
		if err == nil {
			return nil
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

var _ dservice.SignalProvider = (*HTTPSignalProvider)(nil)
