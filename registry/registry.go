// Package registry holds in-flight login challenges keyed by phone number.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/kerja/domain"
)

// Registry implements domain.ChallengeRegistry using ttlcache. Entries
// live until consumed, overwritten or expired; expiry closes the pending
// provider connection so abandoned logins do not leak connections.
type Registry struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.Challenge]
}

// New creates a registry whose challenges expire after ttl.
func New(ttl time.Duration) *Registry {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Challenge](ttl),
		ttlcache.WithDisableTouchOnHit[string, *domain.Challenge](),
	)

	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *domain.Challenge]) {
		// Deletions are consumption or overwrite; the caller owns the
		// connection in those cases.
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		challenge := item.Value()
		log.Debug().Str("phone", challenge.Phone).Msg("login challenge expired")
		if challenge.Conn != nil {
			if err := challenge.Conn.Close(ctx); err != nil {
				log.Warn().Err(err).Str("phone", challenge.Phone).Msg("failed to close expired challenge connection")
			}
		}
	})

	// Start the expiry process
	go cache.Start()

	return &Registry{cache: cache}
}

// Put stores ch, replacing any pending challenge for the same phone.
// The superseded challenge is returned so the caller can close its
// provider connection.
func (r *Registry) Put(_ context.Context, ch *domain.Challenge) *domain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev *domain.Challenge
	if item, ok := r.cache.GetAndDelete(ch.Phone); ok && item != nil {
		prev = item.Value()
	}
	r.cache.Set(ch.Phone, ch, ttlcache.DefaultTTL)

	return prev
}

// Take removes and returns the pending challenge for phone. Consumed
// challenges cannot be replayed; a second Take fails with
// domain.ErrChallengeNotFound.
func (r *Registry) Take(_ context.Context, phone string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.cache.GetAndDelete(phone)
	if !ok || item == nil {
		return nil, domain.ErrChallengeNotFound
	}

	return item.Value(), nil
}

// Len counts the pending challenges.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close stops the expiry goroutine and closes any remaining connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.cache.Items() {
		if challenge := item.Value(); challenge.Conn != nil {
			_ = challenge.Conn.Close(context.Background())
		}
	}
	r.cache.DeleteAll()
	r.cache.Stop()

	return nil
}

var _ domain.ChallengeRegistry = (*Registry)(nil)
