package provider

import (
	"context"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/kerja/domain"
)

// conn is one live gateway session. The credential starts unauthorized
// and is upgraded by a successful sign-in.
type conn struct {
	gateway    *Gateway
	credential string
	closed     bool
}

type sendCodeRequest struct {
	Phone string `json:"phone"`
}

type sendCodeResponse struct {
	PhoneCodeHash string `json:"phone_code_hash"`
}

type signInRequest struct {
	Phone         string `json:"phone"`
	PhoneCodeHash string `json:"phone_code_hash"`
	Code          string `json:"code"`
}

type signInResponse struct {
	Credential string `json:"session"`
}

// RequestCode implements domain.ProviderConn.
func (c *conn) RequestCode(ctx context.Context, phone string) (string, error) {
	var resp sendCodeResponse
	if err := c.gateway.post(ctx, "/auth/sendCode", c.credential, sendCodeRequest{Phone: phone}, &resp); err != nil {
		return "", err
	}

	return resp.PhoneCodeHash, nil
}

// CompleteCode implements domain.ProviderConn. On success the returned
// credential is durable and outlives this connection.
func (c *conn) CompleteCode(ctx context.Context, phone, handle, code string) (string, error) {
	req := signInRequest{Phone: phone, PhoneCodeHash: handle, Code: code}
	var resp signInResponse
	if err := c.gateway.post(ctx, "/auth/signIn", c.credential, req, &resp); err != nil {
		return "", err
	}
	c.credential = resp.Credential

	return resp.Credential, nil
}

// FetchIdentity implements domain.ProviderConn.
func (c *conn) FetchIdentity(ctx context.Context) (*domain.Identity, error) {
	var identity domain.Identity
	if err := c.gateway.post(ctx, "/auth/getMe", c.credential, struct{}{}, &identity); err != nil {
		return nil, err
	}

	return &identity, nil
}

// Close releases the gateway session. Closing twice is a no-op, and a
// failed close is logged rather than surfaced: the session will time out
// gateway-side anyway.
func (c *conn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.gateway.post(ctx, "/session/close", c.credential, struct{}{}, nil); err != nil {
		log.Debug().Err(err).Msg("failed to close provider session")
	}

	return nil
}

var _ domain.ProviderConn = (*conn)(nil)
