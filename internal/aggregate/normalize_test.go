package aggregate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"offeragg/internal/aggregate"
	"offeragg/internal/provider"
)

func TestNormalize_WorkedExample(t *testing.T) {
	t.Parallel()

	// Arrange: 40 EUR, 10% voucher, nothing else derived yet
	rows := []provider.Offer{{Name: " Fiber 500 ", SpeedMbps: 500, CostEUR: 40, VoucherPercent: provider.Ptr(10.0), ConnectionType: "FIBER"}}

	// Act
	got := aggregate.Normalize(provider.ByteMe, rows, nil)

	// Assert
	require.Len(t, got, 1)
	o := got[0]
	require.Equal(t, provider.ByteMe, o.Provider)
	require.Equal(t, "Fiber 500", o.Name)
	require.Equal(t, "fiber", o.ConnectionType)
	require.InDelta(t, 36.0, *o.PromoPriceEUR, 1e-9)
	require.Equal(t, 24, *o.PromoDurationMonths)
	require.InDelta(t, 36.0, *o.CostFirstYearsEUR, 1e-9)
	require.InDelta(t, 40.0, *o.AfterTwoYearsEUR, 1e-9)
	require.True(t, o.Unlimited)
}

func TestNormalize_CanonicalShape(t *testing.T) {
	t.Parallel()

	rows := []provider.Offer{
		{Provider: provider.WebWunder, Name: "wrong provider", SpeedMbps: 100, CostEUR: 30},
		{Name: "both vouchers", SpeedMbps: 100, CostEUR: 30, VoucherPercent: provider.Ptr(10.0), VoucherFixedEUR: provider.Ptr(48.0)},
		{Name: "fixed", SpeedMbps: 100, CostEUR: 30, VoucherFixedEUR: provider.Ptr(48.0)},
		{Name: "limited", SpeedMbps: 100, CostEUR: 30, LimitFromGB: provider.Ptr(100), AfterTwoYearsEUR: provider.Ptr(35.0)},
		{Name: "nulls", SpeedMbps: 100, CostEUR: 30, TV: provider.Ptr(" "), MaxAge: provider.Ptr(0), VoucherPercent: provider.Ptr(math.NaN()), LimitFromGB: provider.Ptr(-1)},
		{Name: "kept promo", SpeedMbps: 100, CostEUR: 30, VoucherPercent: provider.Ptr(50.0), PromoPriceEUR: provider.Ptr(28.0)},
		{Name: "no speed", CostEUR: 30},
		{Name: "negative cost", SpeedMbps: 100, CostEUR: -1},
		{Name: "nan cost", SpeedMbps: 100, CostEUR: math.NaN()},
	}
	got := aggregate.Normalize(provider.PingPerfect, rows, nil)

	require.Len(t, got, 6)
	require.Equal(t, provider.WebWunder, rows[0].Provider, "input untouched")
	require.NotNil(t, rows[1].VoucherFixedEUR, "input untouched")
	for _, o := range got {
		require.Equal(t, provider.PingPerfect, o.Provider)
		require.NotNil(t, o.CostFirstYearsEUR)
		require.NotNil(t, o.AfterTwoYearsEUR)
		require.False(t, o.VoucherPercent != nil && o.VoucherFixedEUR != nil)
		require.Equal(t, o.LimitFromGB == nil, o.Unlimited)
	}

	both := got[1]
	require.Nil(t, both.VoucherFixedEUR)
	require.InDelta(t, 27.0, *both.CostFirstYearsEUR, 1e-9)

	require.InDelta(t, 28.0, *got[2].CostFirstYearsEUR, 1e-9)

	limited := got[3]
	require.False(t, limited.Unlimited)
	require.InDelta(t, 30.0, *limited.CostFirstYearsEUR, 1e-9)
	require.InDelta(t, 35.0, *limited.AfterTwoYearsEUR, 1e-9)

	nulls := got[4]
	require.Nil(t, nulls.TV)
	require.Nil(t, nulls.MaxAge)
	require.Nil(t, nulls.VoucherPercent)
	require.Nil(t, nulls.PromoPriceEUR)
	require.Nil(t, nulls.LimitFromGB)
	require.True(t, nulls.Unlimited)

	require.InDelta(t, 28.0, *got[5].CostFirstYearsEUR, 1e-9)
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	got := aggregate.Normalize(provider.ByteMe, nil, nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestNormalize_OversizedVoucherFloorsAtZero(t *testing.T) {
	t.Parallel()

	// Arrange: a 240 EUR voucher on a 5 EUR tariff, plus an upstream promo below zero
	rows := []provider.Offer{
		{Name: "tiny", SpeedMbps: 50, CostEUR: 5, VoucherFixedEUR: provider.Ptr(240.0)},
		{Name: "given", SpeedMbps: 50, CostEUR: 5, PromoPriceEUR: provider.Ptr(-3.0)},
	}

	// Act
	got := aggregate.Normalize(provider.ServusSpeed, rows, nil)

	// Assert
	require.Len(t, got, 2)
	for _, o := range got {
		require.Zero(t, *o.PromoPriceEUR, o.Name)
		require.Zero(t, *o.CostFirstYearsEUR, o.Name)
		require.InDelta(t, 5.0, *o.AfterTwoYearsEUR, 1e-9)
	}
}
