package registry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/kerja/domain"
)

type closableConn struct {
	closed atomic.Bool
}

func (c *closableConn) RequestCode(context.Context, string) (string, error) {
	return "", nil
}

func (c *closableConn) CompleteCode(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (c *closableConn) FetchIdentity(context.Context) (*domain.Identity, error) {
	return nil, nil
}

func (c *closableConn) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

func newChallenge(phone, handle string) (*domain.Challenge, *closableConn) {
	conn := &closableConn{}
	return &domain.Challenge{
		Phone:     phone,
		Handle:    handle,
		Conn:      conn,
		CreatedAt: time.Now().UTC(),
	}, conn
}

func TestTakeConsumesChallenge(t *testing.T) {
	r := New(time.Minute)
	defer r.Close()
	ctx := context.Background()

	ch, _ := newChallenge("+60111222333", "hash-1")
	prev := r.Put(ctx, ch)
	require.Nil(t, prev)

	got, err := r.Take(ctx, "+60111222333")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.Handle)

	// Consumed once, gone forever.
	_, err = r.Take(ctx, "+60111222333")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestTakeUnknownPhone(t *testing.T) {
	r := New(time.Minute)
	defer r.Close()

	_, err := r.Take(context.Background(), "+60000000000")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestPutReturnsSuperseded(t *testing.T) {
	r := New(time.Minute)
	defer r.Close()
	ctx := context.Background()

	first, _ := newChallenge("+60123456789", "hash-1")
	second, _ := newChallenge("+60123456789", "hash-2")

	require.Nil(t, r.Put(ctx, first))
	prev := r.Put(ctx, second)
	require.NotNil(t, prev)
	assert.Equal(t, "hash-1", prev.Handle)
	assert.Equal(t, 1, r.Len())

	got, err := r.Take(ctx, "+60123456789")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.Handle)
}

func TestExpiryClosesConnection(t *testing.T) {
	r := New(30 * time.Millisecond)
	defer r.Close()
	ctx := context.Background()

	ch, conn := newChallenge("+60111222333", "hash-1")
	r.Put(ctx, ch)

	assert.Eventually(t, func() bool {
		return conn.closed.Load()
	}, 2*time.Second, 10*time.Millisecond, "expired challenge should close its provider connection")

	_, err := r.Take(ctx, "+60111222333")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestTakenChallengeKeepsConnectionOpen(t *testing.T) {
	r := New(time.Minute)
	defer r.Close()
	ctx := context.Background()

	ch, conn := newChallenge("+60111222333", "hash-1")
	r.Put(ctx, ch)

	_, err := r.Take(ctx, "+60111222333")
	require.NoError(t, err)
	assert.False(t, conn.closed.Load(), "the caller owns the connection after Take")
}

func TestCloseDrainsConnections(t *testing.T) {
	r := New(time.Minute)
	ctx := context.Background()

	ch1, conn1 := newChallenge("+60111111111", "hash-1")
	ch2, conn2 := newChallenge("+60222222222", "hash-2")
	r.Put(ctx, ch1)
	r.Put(ctx, ch2)
	require.Equal(t, 2, r.Len())

	require.NoError(t, r.Close())
	assert.True(t, conn1.closed.Load())
	assert.True(t, conn2.closed.Load())
}
