package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"offeragg/internal/provider"
	"offeragg/internal/provider/providermock"
	"offeragg/internal/provider/ratelimit"
)

var addr = provider.Address{Street: "a", HouseNumber: "1", PostalCode: "10115", City: "Berlin"}

func TestMinInterval_SpacesCalls(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().ID().Return(provider.ByteMe)
	p.EXPECT().Fetch(gomock.Any(), addr).Return([]provider.Offer{}, nil).Times(3)
	m := &ratelimit.MinInterval{P: p, Interval: 20 * time.Millisecond}

	// Act
	start := time.Now()
	for range 3 {
		_, err := m.Fetch(t.Context(), addr)
		require.NoError(t, err)
	}

	// Assert
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.Equal(t, provider.ByteMe, m.ID())
}

func TestMinInterval_CanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Fetch(gomock.Any(), addr).Return([]provider.Offer{}, nil).Times(1)
	m := &ratelimit.MinInterval{P: p, Interval: time.Hour}

	_, err := m.Fetch(t.Context(), addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Fetch(ctx, addr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketProvider_Burst(t *testing.T) {
	t.Parallel()

	// Arrange: two tokens, refilled far too slowly for a third call
	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Fetch(gomock.Any(), addr).Return([]provider.Offer{}, nil).Times(2)
	tb := &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(0.001, 2)}

	// Act + Assert
	for range 2 {
		_, err := tb.Fetch(t.Context(), addr)
		require.NoError(t, err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := tb.Fetch(ctx, addr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPerMinute(t *testing.T) {
	t.Parallel()

	tb := ratelimit.PerMinute(60)
	for range 6 {
		require.NoError(t, tb.Wait(t.Context()))
	}
}
