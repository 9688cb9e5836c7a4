package provider_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"offeragg/internal/provider"
)

func TestIDs_FixedSetOfFive(t *testing.T) {
	t.Parallel()

	ids := provider.IDs()
	require.Len(t, ids, 5)
	for _, id := range ids {
		require.Truef(t, id.Valid(), "expected %q to be valid", id)
	}
	require.False(t, provider.ID("Telekom").Valid())

	// Assert: callers cannot mutate the registry order
	ids[0] = "changed"
	require.Equal(t, provider.ByteMe, provider.IDs()[0])
}

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want provider.ID
		ok   bool
	}{
		{"ByteMe", provider.ByteMe, true},
		{"ping perfect", provider.PingPerfect, true},
		{"PingPerfect", provider.PingPerfect, true},
		{" servusspeed ", provider.ServusSpeed, true},
		{"verbyndich", provider.VerbynDich, true},
		{"WEBWUNDER", provider.WebWunder, true},
		{"unknown", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := provider.ParseID(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pingperfect", provider.PingPerfect.Slug())
	require.Equal(t, "byteme", provider.ByteMe.Slug())
}

func TestAddress_Validate(t *testing.T) {
	t.Parallel()

	ok := provider.Address{Street: "Hauptstraße", HouseNumber: "5A", PostalCode: "10115", City: "Berlin"}
	require.NoError(t, ok.Validate())

	bad := provider.Address{Street: "Hauptstraße", HouseNumber: " ", City: "Berlin"}
	err := bad.Validate()
	require.ErrorIs(t, err, provider.ErrInvalidAddress)
	require.Contains(t, err.Error(), "house_number")
	require.Contains(t, err.Error(), "plz")
	require.NotContains(t, err.Error(), "street")
}

func TestAddress_Canonical(t *testing.T) {
	t.Parallel()

	a := provider.Address{Street: "  Hauptstraße ", HouseNumber: "5a", PostalCode: "10115", City: "München"}
	b := provider.Address{Street: "hauptstrasse", HouseNumber: "5A", PostalCode: " 10115", City: "Munchen"}

	require.Equal(t, a.Canonical(), b.Canonical())
	require.Equal(t, "hauptstrasse", a.Canonical().Street)
	require.Equal(t, "munchen", a.Canonical().City)
}

func TestAddress_ASCII(t *testing.T) {
	t.Parallel()

	a := provider.Address{Street: "Straße", HouseNumber: "1", PostalCode: "80469", City: "Café Höhenkirchen"}
	got := a.ASCII()
	require.Equal(t, "Strasse", got.Street)
	require.Equal(t, "Cafe Hohenkirchen", got.City)
}
