package expansion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(s State, events ...Event) State {
	for _, e := range events {
		s, _ = Reduce(s, e)
	}
	return s
}

func TestInitial(t *testing.T) {
	s := Initial()
	assert.Equal(t, TabAll, s.ActiveTab)
	assert.False(t, s.LatestExpanded)
	assert.False(t, s.CategoryExpanded)
}

func TestSelectTab_ResetsCategoryExpanded(t *testing.T) {
	// WHAT: after any tab switch the category flag is false, whatever it was.
	// WHY: a new category always opens on its preview.
	tabs := []string{TabAll, "skincare-tips", "treatment-guide", "expert-opinion"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		s := State{ActiveTab: tabs[rng.Intn(len(tabs))]}
		for j := rng.Intn(6); j > 0; j-- {
			s, _ = Reduce(s, Event{Kind: Kind(rng.Intn(5) + 1), Tab: tabs[rng.Intn(len(tabs))]})
		}
		s = apply(s, Event{Kind: ToggleCategory})

		next := tabs[rng.Intn(len(tabs))]
		if next == s.ActiveTab {
			continue
		}
		got, tr := Reduce(s, Event{Kind: SelectTab, Tab: next})
		require.True(t, tr.TabChanged)
		require.False(t, got.CategoryExpanded, "after switching %q -> %q", s.ActiveTab, next)
	}
}

func TestToggleLatest_OnlyOnAll(t *testing.T) {
	s := apply(Initial(), Event{Kind: ToggleLatest})
	require.True(t, s.LatestExpanded)

	s = apply(s, Event{Kind: SelectTab, Tab: "skincare-tips"})
	got, tr := Reduce(s, Event{Kind: ToggleLatest})
	require.False(t, tr.Changed)
	require.Equal(t, s, got)
}

func TestToggleCategory_OnlyOnCategory(t *testing.T) {
	got, tr := Reduce(Initial(), Event{Kind: ToggleCategory})
	require.False(t, tr.Changed)
	require.False(t, got.CategoryExpanded)

	s := apply(Initial(), Event{Kind: SelectTab, Tab: "treatment-guide"})
	got, tr = Reduce(s, Event{Kind: ToggleCategory})
	require.True(t, tr.Changed)
	require.True(t, tr.LocalToggle)
	require.True(t, got.CategoryExpanded)
	require.False(t, got.LatestExpanded)
}

func TestRemoteToggle_IgnoresActiveTab(t *testing.T) {
	for _, tab := range []string{TabAll, "skincare-tips"} {
		for _, cat := range []bool{false, true} {
			s := State{ActiveTab: tab, CategoryExpanded: cat}
			got, tr := Reduce(s, Event{Kind: RemoteToggle})
			require.True(t, tr.Changed)
			require.False(t, tr.LocalToggle)
			require.True(t, got.LatestExpanded, "tab %q", tab)
			require.Equal(t, cat, got.CategoryExpanded, "remote toggle must not touch the category flag")
			require.Equal(t, tab, got.ActiveTab)
		}
	}
}

func TestSelectTab_SameTabNoop(t *testing.T) {
	s := apply(Initial(), Event{Kind: SelectTab, Tab: "x"}, Event{Kind: ToggleCategory})
	got, tr := Reduce(s, Event{Kind: SelectTab, Tab: "x"})
	require.False(t, tr.Changed)
	require.True(t, got.CategoryExpanded)

	_, tr = Reduce(s, Event{Kind: SelectTab})
	require.False(t, tr.Changed)
}

func TestSetSearch(t *testing.T) {
	s, tr := Reduce(Initial(), Event{Kind: SetSearch, Search: "retinol"})
	require.True(t, tr.Changed)
	require.Equal(t, "retinol", s.Search)

	_, tr = Reduce(s, Event{Kind: SetSearch, Search: "retinol"})
	require.False(t, tr.Changed)
}

func TestExpanded(t *testing.T) {
	require.True(t, State{ActiveTab: TabAll, LatestExpanded: true}.Expanded())
	require.False(t, State{ActiveTab: "c", LatestExpanded: true}.Expanded())
	require.True(t, State{ActiveTab: "c", CategoryExpanded: true}.Expanded())
}

func TestUnknownEvent(t *testing.T) {
	s := Initial()
	got, tr := Reduce(s, Event{Kind: 99})
	require.False(t, tr.Changed)
	require.Equal(t, s, got)
}
