package widget

import (
	"github.com/hazyhaar/hubframe/content"
	"github.com/hazyhaar/hubframe/expansion"
)

// Mode is how the presentation lays out the active listing.
type Mode int

const (
	// ModeSlider is the bounded carousel of the latest articles.
	ModeSlider Mode = iota + 1
	// ModePreview is the bounded grid of a category.
	ModePreview
	// ModeGrid is the unbounded full listing.
	ModeGrid
)

func (m Mode) String() string {
	switch m {
	case ModeSlider:
		return "slider"
	case ModePreview:
		return "preview"
	case ModeGrid:
		return "grid"
	default:
		return "unknown"
	}
}

// Limits are the bounded preview sizes.
type Limits struct {
	Latest   int // slider size on the "all" tab, default 8
	Category int // preview size on a category tab, default 6
}

func (l *Limits) defaults() {
	if l.Latest <= 0 {
		l.Latest = 8
	}
	if l.Category <= 0 {
		l.Category = 6
	}
}

// Tab is one entry of the tab selector.
type Tab struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	CategoryID int    `json:"categoryId,omitempty"`
}

// Listing describes what the active listing should contain. Limit 0 means
// unbounded.
type Listing struct {
	Mode       Mode
	Limit      int
	CategoryID int
	Search     string
}

// Query returns the content query and limit for l.
func (l Listing) Query() (content.Query, int) {
	return content.Query{Search: l.Search, CategoryID: l.CategoryID}, l.Limit
}

// ListingFor derives the listing from the state. Unknown category tabs map
// to category 0, i.e. no category filter.
func ListingFor(s expansion.State, tabs []Tab, lim Limits) Listing {
	lim.defaults()
	if s.OnAll() {
		if s.LatestExpanded {
			return Listing{Mode: ModeGrid, Search: s.Search}
		}
		return Listing{Mode: ModeSlider, Limit: lim.Latest, Search: s.Search}
	}
	l := Listing{Mode: ModePreview, Limit: lim.Category, Search: s.Search}
	for _, t := range tabs {
		if t.ID == s.ActiveTab {
			l.CategoryID = t.CategoryID
			break
		}
	}
	if s.CategoryExpanded {
		l.Mode = ModeGrid
		l.Limit = 0
	}
	return l
}

// View is everything the presentation layer needs for one render.
type View struct {
	Tabs     []Tab
	State    expansion.State
	Listing  Listing
	Articles []content.Article
	Loading  bool
}

// Presenter renders views. Render is called on the UI loop.
type Presenter interface {
	Render(v View)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(View)

func (f PresenterFunc) Render(v View) { f(v) }
