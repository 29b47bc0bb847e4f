// Package provider implements the messaging-provider collaborator over
// the provider's HTTPS verification gateway. The gateway exposes JSON
// operations for the phone sign-in flow: open/resume a session, send a
// one-time code, complete the sign-in and look up the signed-in account.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/kerja/domain"
)

// Gateway dials the verification gateway. It implements domain.Provider.
type Gateway struct {
	baseURL    string
	apiID      int
	apiHash    string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
}

// Config carries the gateway settings.
type Config struct {
	BaseURL string
	APIID   int
	APIHash string
	// Retries bounds the connect attempts before giving up with a
	// connectivity error.
	Retries int
	Timeout time.Duration
}

// NewGateway creates a gateway client with bounded request timeouts.
func NewGateway(cfg Config) *Gateway {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Gateway{
		baseURL:    cfg.BaseURL,
		apiID:      cfg.APIID,
		apiHash:    cfg.APIHash,
		retries:    retries,
		retryDelay: 500 * time.Millisecond,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type openSessionRequest struct {
	APIID      int    `json:"api_id"`
	APIHash    string `json:"api_hash"`
	Credential string `json:"session,omitempty"`
}

type openSessionResponse struct {
	Credential string `json:"session"`
}

// Connect opens a fresh, unauthorized session for a new login attempt.
func (g *Gateway) Connect(ctx context.Context) (domain.ProviderConn, error) {
	return g.open(ctx, "")
}

// ConnectWithCredential resumes the session behind a stored credential.
func (g *Gateway) ConnectWithCredential(ctx context.Context, credential string) (domain.ProviderConn, error) {
	return g.open(ctx, credential)
}

func (g *Gateway) open(ctx context.Context, credential string) (domain.ProviderConn, error) {
	req := openSessionRequest{APIID: g.apiID, APIHash: g.apiHash, Credential: credential}

	var lastErr error
	for attempt := 1; attempt <= g.retries; attempt++ {
		var resp openSessionResponse
		err := g.post(ctx, "/session/open", credential, req, &resp)
		if err == nil {
			return &conn{gateway: g, credential: resp.Credential}, nil
		}
		lastErr = err

		// A gateway-side rejection will not heal on retry.
		var rejection *domain.ProviderRejection
		if errors.As(err, &rejection) {
			return nil, err
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("provider connect failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.retryDelay):
		}
	}

	return nil, fmt.Errorf("provider unreachable after %d attempts: %w", g.retries, lastErr)
}

// post sends one JSON request. Non-2xx responses carrying a gateway error
// body become domain.ProviderRejection; everything else is a transport
// failure.
func (g *Gateway) post(ctx context.Context, path, credential string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("X-Session", credential)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&gwErr); decodeErr == nil && gwErr.Error != "" {
			return &domain.ProviderRejection{Reason: gwErr.Error}
		}
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}

	return nil
}

var _ domain.Provider = (*Gateway)(nil)
