// Package expansion holds the widget's listing state as a pure reducer.
//
// Two independent flags control whether a listing shows a bounded preview or
// its full content: LatestExpanded for the "all" tab and CategoryExpanded for
// whichever category tab is active. CategoryExpanded resets whenever the
// active tab changes.
package expansion

// TabAll identifies the "all articles" tab.
const TabAll = "all"

// State is the complete listing state.
type State struct {
	ActiveTab        string
	Search           string
	LatestExpanded   bool
	CategoryExpanded bool
}

// Initial returns the state at load: tab all, nothing expanded.
func Initial() State {
	return State{ActiveTab: TabAll}
}

// OnAll reports whether the "all" tab is active.
func (s State) OnAll() bool { return s.ActiveTab == TabAll }

// Expanded returns the flag of the active listing.
func (s State) Expanded() bool {
	if s.OnAll() {
		return s.LatestExpanded
	}
	return s.CategoryExpanded
}

// Kind identifies an event.
type Kind int

const (
	// SelectTab activates Event.Tab.
	SelectTab Kind = iota + 1
	// ToggleLatest is a local click on the latest-listing toggle. Only valid
	// on the "all" tab.
	ToggleLatest
	// ToggleCategory is a local click on the category toggle. Only valid on
	// a category tab.
	ToggleCategory
	// RemoteToggle is an inbound TOGGLE_EXPAND. It flips LatestExpanded on
	// any tab.
	RemoteToggle
	// SetSearch replaces the search term with Event.Search.
	SetSearch
)

// Event is an input to Reduce.
type Event struct {
	Kind   Kind
	Tab    string
	Search string
}

// Transition describes what Reduce changed.
type Transition struct {
	Changed     bool
	TabChanged  bool
	LocalToggle bool
}

// Reduce returns the state after e. Invalid events leave s unchanged and
// report Changed false.
func Reduce(s State, e Event) (State, Transition) {
	switch e.Kind {
	case SelectTab:
		if e.Tab == "" || e.Tab == s.ActiveTab {
			return s, Transition{}
		}
		s.ActiveTab = e.Tab
		s.CategoryExpanded = false
		return s, Transition{Changed: true, TabChanged: true}

	case ToggleLatest:
		if !s.OnAll() {
			return s, Transition{}
		}
		s.LatestExpanded = !s.LatestExpanded
		return s, Transition{Changed: true, LocalToggle: true}

	case ToggleCategory:
		if s.OnAll() {
			return s, Transition{}
		}
		s.CategoryExpanded = !s.CategoryExpanded
		return s, Transition{Changed: true, LocalToggle: true}

	case RemoteToggle:
		s.LatestExpanded = !s.LatestExpanded
		return s, Transition{Changed: true}

	case SetSearch:
		if e.Search == s.Search {
			return s, Transition{}
		}
		s.Search = e.Search
		return s, Transition{Changed: true}
	}
	return s, Transition{}
}
