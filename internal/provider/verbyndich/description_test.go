package verbyndich_test

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"offeragg/internal/provider/verbyndich"
)

var update = flag.Bool("update", false, "rewrite golden files")

func TestParseDescription_Golden(t *testing.T) {
	t.Parallel()

	inputs, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, inputs)

	for _, in := range inputs {
		name := strings.TrimSuffix(filepath.Base(in), ".txt")
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			raw, err := os.ReadFile(in)
			require.NoError(t, err)
			goldenPath := filepath.Join("testdata", name+".golden.json")

			// Act
			got, err := json.MarshalIndent(verbyndich.ParseDescription(string(raw)), "", "  ")
			require.NoError(t, err)

			// Assert
			if *update {
				require.NoError(t, os.WriteFile(goldenPath, append(got, '\n'), 0o644))
			}
			want, err := os.ReadFile(goldenPath)
			require.NoError(t, err)
			require.JSONEq(t, string(want), string(got))
		})
	}
}

func TestParseDescription_DecimalAmounts(t *testing.T) {
	t.Parallel()

	d := verbyndich.ParseDescription("Für nur 29,99€ im Monat erhalten Sie eine Cable-Verbindung mit einer Geschwindigkeit von 250 Mbit/s.")

	require.NotNil(t, d.CostEUR)
	require.InDelta(t, 29.99, *d.CostEUR, 1e-9)
	require.Equal(t, "cable", *d.ConnectionType)
	require.Equal(t, 250, *d.SpeedMbps)
	require.Nil(t, d.VoucherPercent)
}
