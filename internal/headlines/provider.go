// Package headlines fetches a single current news headline used to
// prefill a debate topic suggestion. It is a pure read-through helper:
// any failure fails open with a static fallback rather than surfacing
// an error to the caller.
package headlines

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// fallbackHeadline is returned whenever the upstream call fails for any
// reason — a blank "what should we debate" screen is worse than a stale
// canned topic.
const fallbackHeadline = "Is artificial intelligence good for humanity?"

// Provider returns a single topic-suggestion headline.
type Provider interface {
	TopHeadline(ctx context.Context) string
}

// HTTPProvider fetches from a configured news endpoint expecting a
// {"headline": "..."} JSON body with a single GET, the same
// one-request shape as ttsclient.HTTPClient's single POST.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

// NewHTTPProvider builds a provider against endpoint, authenticating
// with apiKey as a bearer token in the Authorization header if non-empty.
func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type headlineResponse struct {
	Headline string `json:"headline"`
}

// TopHeadline never returns an error: any failure (no endpoint
// configured, network error, bad status, empty body) is logged and
// answered with fallbackHeadline instead.
func (p *HTTPProvider) TopHeadline(ctx context.Context) string {
	if p.endpoint == "" {
		return fallbackHeadline
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		p.logger.Warn("headlines: building request failed", zap.Error(err))
		return fallbackHeadline
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Warn("headlines: request failed", zap.Error(err))
		return fallbackHeadline
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("headlines: unexpected status", zap.Int("status", resp.StatusCode))
		return fallbackHeadline
	}

	var parsed headlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		p.logger.Warn("headlines: decoding response failed", zap.Error(err))
		return fallbackHeadline
	}
	if parsed.Headline == "" {
		return fallbackHeadline
	}
	return parsed.Headline
}

// StaticProvider always returns a fixed headline, or fallbackHeadline
// when Headline is empty. It makes no network call.
type StaticProvider struct {
	Headline string
}

func (p StaticProvider) TopHeadline(ctx context.Context) string {
	if p.Headline == "" {
		return fallbackHeadline
	}
	return p.Headline
}
