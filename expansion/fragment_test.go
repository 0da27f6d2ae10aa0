package expansion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type memLocation struct {
	fragment string
	writes   int
}

func (m *memLocation) Fragment() string { return m.fragment }

func (m *memLocation) ReplaceFragment(f string) {
	m.fragment = f
	m.writes++
}

func TestParseFragment(t *testing.T) {
	known := func(tab string) bool { return tab == TabAll || tab == "skincare-tips" }

	tab, ok := ParseFragment("#skincare-tips", known)
	require.True(t, ok)
	require.Equal(t, "skincare-tips", tab)

	_, ok = ParseFragment("#does-not-exist", known)
	require.False(t, ok)
	_, ok = ParseFragment("", known)
	require.False(t, ok)
	_, ok = ParseFragment("#all", nil)
	require.False(t, ok)
}

func TestSyncFragment_OnlyWhenDifferent(t *testing.T) {
	loc := &memLocation{fragment: "all"}
	require.False(t, SyncFragment(loc, TabAll))
	require.True(t, SyncFragment(loc, "skincare-tips"))
	require.False(t, SyncFragment(loc, "skincare-tips"))
	require.Equal(t, 1, loc.writes)
	require.False(t, SyncFragment(nil, "x"))
}
