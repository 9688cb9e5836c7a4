package filter_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"offeragg/internal/filter"
	"offeragg/internal/provider"
)

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  filter.SortKey
		want []string
	}{
		{key: filter.SortFirstYearsCost, want: []string{"d", "a", "c", "b"}},
		{key: filter.SortAfterTwoYearsCost, want: []string{"a", "c", "d", "b"}},
		{key: filter.SortSpeed, want: []string{"b", "c", "d", "a"}},
		{key: filter.SortNone, want: []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			t.Parallel()

			in := offers()
			got := filter.Sort(in, tt.key)

			require.Equal(t, tt.want, names(got))
			require.Equal(t, []string{"a", "b", "c", "d"}, names(in))
		})
	}
}

func TestSort_MissingCostLast(t *testing.T) {
	t.Parallel()

	in := []provider.Offer{
		{Name: "x"},
		{Name: "y", CostFirstYearsEUR: provider.Ptr(10.0)},
	}
	require.Equal(t, []string{"y", "x"}, names(filter.Sort(in, filter.SortFirstYearsCost)))
}

func TestSortSpeed_NonIncreasingAndIdempotent(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(3, 4))
	in := make([]provider.Offer, 300)
	for i := range in {
		in[i] = provider.Offer{SpeedMbps: r.IntN(10) * 100, DurationMonths: i}
	}

	once := filter.Sort(in, filter.SortSpeed)
	for i := 1; i < len(once); i++ {
		require.GreaterOrEqual(t, once[i-1].SpeedMbps, once[i].SpeedMbps)
		if once[i-1].SpeedMbps == once[i].SpeedMbps {
			require.Less(t, once[i-1].DurationMonths, once[i].DurationMonths, "ties keep input order")
		}
	}
	require.Equal(t, once, filter.Sort(once, filter.SortSpeed))
}

func TestParseSortKey(t *testing.T) {
	t.Parallel()

	tests := map[string]filter.SortKey{
		"":                 filter.SortFirstYearsCost,
		"cost_first_years": filter.SortFirstYearsCost,
		"cost_later_years": filter.SortAfterTwoYearsCost,
		"SPEED":            filter.SortSpeed,
		"none":             filter.SortNone,
	}
	for in, want := range tests {
		got, err := filter.ParseSortKey(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := filter.ParseSortKey("price")
	require.Error(t, err)
}
