package expansion

import "strings"

// Location is the address bar of the widget document.
type Location interface {
	// Fragment returns the current fragment without the leading '#'.
	Fragment() string
	// ReplaceFragment sets the fragment without adding a history entry.
	ReplaceFragment(fragment string)
}

// ParseFragment returns the tab named by raw if known accepts it. A leading
// '#' is stripped; the value is otherwise used verbatim.
func ParseFragment(raw string, known func(tab string) bool) (string, bool) {
	tab := strings.TrimPrefix(raw, "#")
	if tab == "" || known == nil || !known(tab) {
		return "", false
	}
	return tab, true
}

// SyncFragment writes tab to loc when it differs from the current fragment.
// It reports whether a write happened.
func SyncFragment(loc Location, tab string) bool {
	if loc == nil {
		return false
	}
	if strings.TrimPrefix(loc.Fragment(), "#") == tab {
		return false
	}
	loc.ReplaceFragment(tab)
	return true
}
