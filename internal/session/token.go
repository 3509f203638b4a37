package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Credential is a single-use authorization for one streaming session. The
// token is consumed by the socket handshake and must never be reused.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// TokenProvider mints stream credentials. Available must be cheap (no
// network); Acquire performs the remote call.
type TokenProvider interface {
	Available() bool
	Acquire(ctx context.Context) (*Credential, error)
}

// tokenResponse is the body returned by both the proxy and the vendor token
// endpoints. Expiry is unix seconds; issued tokens are observed to be valid
// for 15 minutes and one use.
type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func decodeTokenResponse(resp *http.Response) (*Credential, error) {
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result tokenResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("token endpoint returned an empty token")
	}

	return &Credential{
		Token:     result.Token,
		ExpiresAt: time.Unix(result.ExpiresAt, 0),
	}, nil
}

// ProxyTokenProvider mints credentials through a pre-authenticated relay, so
// the vendor key never has to live on this machine.
type ProxyTokenProvider struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewProxyTokenProvider creates a proxy-backed provider. An empty endpoint
// produces a provider that reports itself unavailable.
func NewProxyTokenProvider(endpoint, authToken string, timeout time.Duration, log *logger.Logger) *ProxyTokenProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ProxyTokenProvider{
		endpoint:  strings.TrimRight(endpoint, "/"),
		authToken: authToken,
		logger:    log.Named("token-proxy"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Available reports whether a proxy endpoint is configured.
func (p *ProxyTokenProvider) Available() bool {
	return p.endpoint != ""
}

// Acquire requests a single-use token from the relay.
func (p *ProxyTokenProvider) Acquire(ctx context.Context) (*Credential, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.authToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.authToken))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	cred, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Acquired stream token via proxy",
		logger.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// VendorTokenProvider mints credentials directly against the vendor's token
// endpoint using a locally held API key.
type VendorTokenProvider struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewVendorTokenProvider creates a direct vendor provider. An empty API key
// produces a provider that reports itself unavailable.
func NewVendorTokenProvider(baseURL, tokenPath, apiKey, model string, timeout time.Duration, log *logger.Logger) *VendorTokenProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &VendorTokenProvider{
		endpoint: strings.TrimRight(baseURL, "/") + tokenPath,
		apiKey:   apiKey,
		model:    model,
		logger:   log.Named("token-vendor"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Available reports whether a vendor API key is configured.
func (v *VendorTokenProvider) Available() bool {
	return v.apiKey != ""
}

// Acquire requests a single-use token from the vendor.
func (v *VendorTokenProvider) Acquire(ctx context.Context) (*Credential, error) {
	body := strings.NewReader(fmt.Sprintf(`{"model":%q}`, v.model))
	req, err := http.NewRequestWithContext(ctx, "POST", v.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", v.apiKey))

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	cred, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("Acquired stream token from vendor",
		logger.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// ChainTokenProvider tries providers in order. The proxied path is listed
// first as a policy decision: the vendor key stays off the request path
// whenever a relay is available. A provider that is unavailable or errors
// falls through to the next.
type ChainTokenProvider struct {
	providers []TokenProvider
	logger    *logger.Logger
}

// NewChainTokenProvider creates a provider chain in the given order.
func NewChainTokenProvider(log *logger.Logger, providers ...TokenProvider) *ChainTokenProvider {
	return &ChainTokenProvider{
		providers: providers,
		logger:    log.Named("token-chain"),
	}
}

// Available reports whether any provider in the chain is available.
func (c *ChainTokenProvider) Available() bool {
	for _, p := range c.providers {
		if p.Available() {
			return true
		}
	}
	return false
}

// Acquire returns the first credential any available provider mints. All
// failures classify as ErrAuthFailed.
func (c *ChainTokenProvider) Acquire(ctx context.Context) (*Credential, error) {
	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		cred, err := p.Acquire(ctx)
		if err != nil {
			c.logger.Warn("Token provider failed, trying next", logger.Error(err))
			lastErr = err
			continue
		}
		return cred, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: no credential path configured", ErrAuthFailed)
}

// NewTokenProvider builds the standard proxy-then-vendor chain from the
// application configuration.
func NewTokenProvider(cfg *config.Config, log *logger.Logger) TokenProvider {
	timeout := time.Duration(cfg.Transcription.ConnectTimeoutSecs) * time.Second
	return NewChainTokenProvider(log,
		NewProxyTokenProvider(cfg.Transcription.ProxyURL, cfg.Transcription.ProxyAuthToken, timeout, log),
		NewVendorTokenProvider(cfg.Transcription.BaseURL, cfg.Transcription.TokenPath, cfg.Transcription.APIKey, cfg.Transcription.Model, timeout, log),
	)
}
