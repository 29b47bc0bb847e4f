// Package auth orchestrates the two-phase phone login protocol and owns
// token issuance and revocation.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/kerja/domain"
	autherrors "go.pilab.hu/kerja/errors"
	"go.pilab.hu/kerja/internal/audit"
	"go.pilab.hu/kerja/internal/metrics"
	"go.pilab.hu/kerja/sessions"
)

const serviceName = "AuthService"

// Service drives the login state machine: BeginLogin requests a one-time
// code, CompleteLogin exchanges it for a bearer token, ResolveProfile and
// Logout operate on issued tokens. Provider failures are translated into
// the error taxonomy here and never propagate raw.
type Service struct {
	registry domain.ChallengeRegistry
	store    domain.SessionStore
	provider domain.Provider
}

// NewService creates a new Service.
func NewService(registry domain.ChallengeRegistry, store domain.SessionStore, provider domain.Provider) *Service {
	return &Service{
		registry: registry,
		store:    store,
		provider: provider,
	}
}

// BeginLogin opens a fresh provider connection and asks it to send a
// one-time code to phone. Any pending challenge for the same phone is
// superseded and its connection closed.
func (s *Service) BeginLogin(ctx context.Context, phone string) error {
	if phone == "" {
		return autherrors.NewInvalidInput("phone is required")
	}

	conn, err := s.provider.Connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("BeginLogin: provider connect failed")
		audit.Log(serviceName, "BeginLogin", phone, "", "provider connect failed", false, err)
		metrics.CodeRequestFailureTotal.Inc()
		return autherrors.NewProviderUnavailable("could not reach the verification provider")
	}

	handle, err := conn.RequestCode(ctx, phone)
	if err != nil {
		_ = conn.Close(ctx)
		log.Warn().Err(err).Str("phone", phone).Msg("BeginLogin: code request failed")
		audit.Log(serviceName, "BeginLogin", phone, "", "code request failed", false, err)
		metrics.CodeRequestFailureTotal.Inc()

		var rejection *domain.ProviderRejection
		if errors.As(err, &rejection) {
			// Invalid phone, rate limit and friends.
			return autherrors.NewInvalidInput(rejection.Reason)
		}
		return autherrors.NewProviderUnavailable("could not send the one-time code")
	}

	prev := s.registry.Put(ctx, &domain.Challenge{
		Phone:     phone,
		Handle:    handle,
		Conn:      conn,
		CreatedAt: time.Now().UTC(),
	})
	if prev != nil && prev.Conn != nil {
		_ = prev.Conn.Close(ctx)
	}

	metrics.CodeRequestsTotal.Inc()
	audit.Log(serviceName, "BeginLogin", phone, "", "one-time code sent", true, nil)
	log.Debug().Str("phone", phone).Msg("BeginLogin: challenge stored")

	return nil
}

// CompleteLogin consumes the pending challenge for phone and submits code
// to the provider. The challenge is one-shot: a wrong code consumes it
// too, and the caller must restart from BeginLogin. On success it mints
// and persists a new bearer token, the sole means of future access.
func (s *Service) CompleteLogin(ctx context.Context, phone, code string) (string, error) {
	if phone == "" || code == "" {
		return "", autherrors.NewInvalidInput("phone and code are required")
	}

	challenge, err := s.registry.Take(ctx, phone)
	if err != nil {
		log.Warn().Str("phone", phone).Msg("CompleteLogin: no pending challenge")
		metrics.LoginFailureTotal.Inc()
		return "", autherrors.NewChallengeNotFound("login session not found")
	}
	defer func() {
		_ = challenge.Conn.Close(ctx)
	}()

	credential, err := challenge.Conn.CompleteCode(ctx, phone, challenge.Handle, code)
	if err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("CompleteLogin: verification failed")
		audit.Log(serviceName, "CompleteLogin", phone, "", "verification failed", false, err)
		metrics.LoginFailureTotal.Inc()

		var rejection *domain.ProviderRejection
		if errors.As(err, &rejection) {
			return "", autherrors.NewInvalidCode("the one-time code is wrong or expired")
		}
		return "", autherrors.NewProviderUnavailable("could not verify the one-time code")
	}

	token, err := sessions.GenerateToken()
	if err != nil {
		log.Error().Err(err).Msg("CompleteLogin: token generation failed")
		return "", autherrors.NewServerError("could not issue a session token")
	}
	if err := s.store.Put(ctx, token, credential); err != nil {
		log.Error().Err(err).Msg("CompleteLogin: failed to persist session")
		return "", autherrors.NewServerError("could not persist the session")
	}

	metrics.LoginSuccessTotal.Inc()
	metrics.ActiveSessionsGauge.Inc()
	audit.Log(serviceName, "CompleteLogin", phone, sessions.Fingerprint(token), "login successful", true, nil)

	return token, nil
}

// ResolveProfile looks up the credential behind token and fetches the
// account identity from the provider. A provider-side rejection means the
// credential was revoked upstream: the stale record is evicted and the
// caller should treat the session as logged out.
func (s *Service) ResolveProfile(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, autherrors.NewUnauthorized("missing session token")
	}

	credential, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, autherrors.NewUnauthorized("unknown session token")
		}
		log.Error().Err(err).Msg("ResolveProfile: session store read failed")
		return nil, autherrors.NewServerError("could not read the session store")
	}

	conn, err := s.provider.ConnectWithCredential(ctx, credential)
	if err != nil {
		log.Error().Err(err).Msg("ResolveProfile: provider connect failed")
		return nil, autherrors.NewProviderUnavailable("could not reach the verification provider")
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	identity, err := conn.FetchIdentity(ctx)
	if err != nil {
		var rejection *domain.ProviderRejection
		if errors.As(err, &rejection) {
			// Credential revoked or expired upstream, the local record
			// is stale.
			s.evict(ctx, token)
			audit.Log(serviceName, "ResolveProfile", sessions.Fingerprint(token), "", "credential rejected upstream", false, err)
			return nil, autherrors.NewSessionExpired("session expired, please log in again")
		}
		log.Error().Err(err).Msg("ResolveProfile: identity lookup failed")
		return nil, autherrors.NewProviderUnavailable("could not fetch the profile")
	}

	return identity, nil
}

// Logout removes the session record. It is idempotent and always
// succeeds; the provider-side credential is not revoked upstream.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if _, err := s.store.Get(ctx, token); err == nil {
		metrics.ActiveSessionsGauge.Dec()
	}
	if err := s.store.Remove(ctx, token); err != nil {
		// Logout stays best-effort: the client discards the token
		// regardless.
		log.Warn().Err(err).Msg("Logout: failed to remove session")
	}
	audit.Log(serviceName, "Logout", sessions.Fingerprint(token), "", "", true, nil)

	return nil
}

func (s *Service) evict(ctx context.Context, token string) {
	if err := s.store.Remove(ctx, token); err != nil {
		log.Warn().Err(err).Msg("failed to evict stale session")
		return
	}
	metrics.ActiveSessionsGauge.Dec()
}
