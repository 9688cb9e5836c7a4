package filter_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"offeragg/internal/filter"
	"offeragg/internal/provider"
)

func offers() []provider.Offer {
	return []provider.Offer{
		{Provider: provider.ByteMe, Name: "a", SpeedMbps: 100, DurationMonths: 24, ConnectionType: "dsl", TV: provider.Ptr("ByteTV"), CostFirstYearsEUR: provider.Ptr(30.0), AfterTwoYearsEUR: provider.Ptr(35.0), Unlimited: true},
		{Provider: provider.PingPerfect, Name: "b", SpeedMbps: 1000, DurationMonths: 12, ConnectionType: "fiber", InstallationIncluded: true, LimitFromGB: provider.Ptr(500), CostFirstYearsEUR: provider.Ptr(50.0), AfterTwoYearsEUR: provider.Ptr(50.0), MaxAge: provider.Ptr(27)},
		{Provider: provider.WebWunder, Name: "c", SpeedMbps: 250, DurationMonths: 24, ConnectionType: "cable", LimitFromGB: provider.Ptr(100), CostFirstYearsEUR: provider.Ptr(30.0), AfterTwoYearsEUR: provider.Ptr(40.0)},
		{Provider: provider.VerbynDich, Name: "d", SpeedMbps: 250, DurationMonths: 1, ConnectionType: "DSL", CostFirstYearsEUR: provider.Ptr(20.0), AfterTwoYearsEUR: provider.Ptr(45.0), MaxAge: provider.Ptr(30), Unlimited: true},
	}
}

func names(os []provider.Offer) []string {
	out := make([]string, len(os))
	for i, o := range os {
		out[i] = o.Name
	}
	return out
}

func TestFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    filter.Filter
		want []string
	}{
		{name: "min speed", f: filter.MinSpeed(250), want: []string{"b", "c", "d"}},
		{name: "max duration", f: filter.MaxDuration(12), want: []string{"b", "d"}},
		{name: "tv required", f: filter.TV(filter.TVRequired), want: []string{"a"}},
		{name: "tv excluded", f: filter.TV(filter.TVExcluded), want: []string{"b", "c", "d"}},
		{name: "unlimited only", f: filter.Limit(filter.LimitUnlimitedOnly, 0), want: []string{"a", "d"}},
		{name: "limit at least", f: filter.Limit(filter.LimitAtLeast, 200), want: []string{"a", "b", "d"}},
		{name: "installation", f: filter.InstallationRequired(), want: []string{"b"}},
		{name: "connection types", f: filter.ConnectionTypes("DSL", "cable"), want: []string{"a", "c", "d"}},
		{name: "providers", f: filter.Providers(provider.ByteMe, provider.WebWunder), want: []string{"a", "c"}},
		{name: "age 28", f: filter.Age(28), want: []string{"a", "c", "d"}},
		{name: "age 27", f: filter.Age(27), want: []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, names(filter.Apply(offers(), tt.f)))
		})
	}
}

func TestApply_AndAndNoMutation(t *testing.T) {
	t.Parallel()

	in := offers()
	before := names(in)

	got := filter.Apply(in, filter.MinSpeed(200), filter.MaxDuration(12))

	require.Equal(t, []string{"b", "d"}, names(got))
	require.Equal(t, before, names(in))
	require.Equal(t, before, names(filter.Apply(in)))
}

func TestMinSpeed_IdempotentAndSound(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	in := make([]provider.Offer, 200)
	for i := range in {
		in[i] = provider.Offer{SpeedMbps: r.IntN(2000) + 1}
	}

	for _, s := range []int{1, 50, 500, 1999} {
		once := filter.Apply(in, filter.MinSpeed(s))
		twice := filter.Apply(once, filter.MinSpeed(s))
		require.Equal(t, once, twice)
		for _, o := range once {
			require.GreaterOrEqual(t, o.SpeedMbps, s)
		}
	}
}

func TestCriteria_Filters(t *testing.T) {
	t.Parallel()

	require.Empty(t, filter.Criteria{}.Filters())

	c := filter.Criteria{
		MinSpeed:        provider.Ptr(200),
		TV:              provider.Ptr(false),
		MinLimitGB:      provider.Ptr(200),
		ConnectionTypes: []string{"fiber", "dsl"},
		Age:             provider.Ptr(28),
	}
	require.Equal(t, []string{"d"}, names(filter.Apply(offers(), c.Filters()...)))

	c = filter.Criteria{UnlimitedOnly: true, MinLimitGB: provider.Ptr(10)}
	require.Equal(t, []string{"a", "d"}, names(filter.Apply(offers(), c.Filters()...)))
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"true", "TRUE", "1", "yes", "Y", " y "} {
		require.True(t, filter.ParseBool(s), s)
	}
	for _, s := range []string{"", "false", "0", "no", "maybe"} {
		require.False(t, filter.ParseBool(s), s)
	}
}
