package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchPicksHighestConfidence(t *testing.T) {
	// "interest" (0.6) and "subscription" (0.7) both apply.
	s, ok := Match("Interest on subscription account")
	require.True(t, ok)
	require.Equal(t, "software", s.Pattern)
	require.InDelta(t, 0.7, s.Confidence, 0.001)
}

func TestMatchKinds(t *testing.T) {
	cases := []struct {
		desc    string
		pattern string
		account string
	}{
		{"Monthly payroll run June", "payroll", "6000"},
		{"BANK FEE wire transfer", "bank-fees", "6400"},
		{"AWS invoice 2026-06", "saas-vendors", "6300"},
		{"vat refund", "vat-refund", "2150"},
		{"Office Supplies - Staples", "office-supplies", "6600"},
	}
	for _, tc := range cases {
		s, ok := Match(tc.desc)
		require.True(t, ok, tc.desc)
		require.Equal(t, tc.pattern, s.Pattern, tc.desc)
		require.Equal(t, tc.account, s.AccountCode, tc.desc)
	}
}

func TestMatchNoHit(t *testing.T) {
	_, ok := Match("completely unrelated text")
	require.False(t, ok)

	_, ok = Match("   ")
	require.False(t, ok)
}

func TestPatternsSortedByConfidence(t *testing.T) {
	list := Patterns()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		require.GreaterOrEqual(t, list[i-1].Confidence, list[i].Confidence)
	}
}
