// Package widget runs the embedded article widget: it owns the expansion
// state, drives the presentation layer and reports its height to the host
// page after every change.
package widget

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/hubframe/content"
	"github.com/hazyhaar/hubframe/expansion"
	"github.com/hazyhaar/hubframe/framesync"
	"github.com/hazyhaar/hubframe/height"
	"github.com/hazyhaar/hubframe/uiloop"
	"github.com/hazyhaar/hubframe/wire"
)

// Source is the read-only content repository.
type Source interface {
	Categories(ctx context.Context, hideEmpty bool) ([]content.Category, error)
	Articles(ctx context.Context, q content.Query, limit int) ([]content.Article, error)
}

// Config holds widget settings.
type Config struct {
	AllLabel     string        // label of the "all" tab
	Limits       Limits        // preview sizes
	ReflowDelay  time.Duration // delay of the second height report
	FetchTimeout time.Duration // per content request, default 15s
}

func (c *Config) defaults() {
	if c.AllLabel == "" {
		c.AllLabel = "Semua Artikel"
	}
	c.Limits.defaults()
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
}

// Deps are the collaborators of a Widget. Source and Location may be nil.
type Deps struct {
	Loop      *uiloop.Loop
	Channel   *framesync.Channel
	Probe     *height.Probe
	Presenter Presenter
	Source    Source
	Location  expansion.Location
	Logger    *slog.Logger
}

// Widget is the embedded widget. Its exported methods may be called from
// any goroutine; they queue work on the UI loop.
type Widget struct {
	cfg       Config
	loop      *uiloop.Loop
	ch        *framesync.Channel
	probe     *height.Probe
	presenter Presenter
	source    Source
	location  expansion.Location
	logger    *slog.Logger
	sched     *framesync.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	sub    *framesync.Subscription

	// Owned by the loop.
	state    expansion.State
	tabs     []Tab
	articles []content.Article
	loading  bool
	gen      uint64
}

// New creates a Widget. Call Start to render and begin reporting.
func New(cfg Config, deps Deps) *Widget {
	cfg.defaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Widget{
		cfg:       cfg,
		loop:      deps.Loop,
		ch:        deps.Channel,
		probe:     deps.Probe,
		presenter: deps.Presenter,
		source:    deps.Source,
		location:  deps.Location,
		logger:    logger,
		state:     expansion.Initial(),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.sched = framesync.NewScheduler(w.loop, w.ch, w.snapshot, cfg.ReflowDelay)
	w.tabs = []Tab{{ID: expansion.TabAll, Label: cfg.AllLabel}}
	return w
}

// Start registers the remote command handler, renders the initial view and
// loads the category tabs.
func (w *Widget) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.sub = w.ch.OnRemoteCommand(w.onCommand)
	w.loop.Post(func() {
		w.refresh()
		w.sched.Changed()
		w.loadTabs()
	})
}

// Close stops reporting and drops the remote command handler.
func (w *Widget) Close() {
	if w.sub != nil {
		w.sub.Cancel()
	}
	w.cancel()
}

// SelectTab activates a tab by id. Ids that name no loaded tab are ignored.
func (w *Widget) SelectTab(id string) {
	w.loop.Post(func() {
		if !w.knownTab(id) {
			w.logger.Debug("widget: unknown tab", "tab", id)
			return
		}
		w.apply(expansion.Event{Kind: expansion.SelectTab, Tab: id})
	})
}

// ToggleLatest is a click on the "all" tab's expand control.
func (w *Widget) ToggleLatest() { w.post(expansion.Event{Kind: expansion.ToggleLatest}) }

// ToggleCategory is a click on a category's expand control.
func (w *Widget) ToggleCategory() { w.post(expansion.Event{Kind: expansion.ToggleCategory}) }

// Toggle clicks the expand control of whichever listing is active.
func (w *Widget) Toggle() {
	w.loop.Post(func() {
		if w.state.OnAll() {
			w.apply(expansion.Event{Kind: expansion.ToggleLatest})
			return
		}
		w.apply(expansion.Event{Kind: expansion.ToggleCategory})
	})
}

// SetSearch replaces the search term.
func (w *Widget) SetSearch(term string) {
	w.post(expansion.Event{Kind: expansion.SetSearch, Search: term})
}

// HashChanged handles an external change of the URL fragment. Unknown tabs
// are ignored.
func (w *Widget) HashChanged(fragment string) {
	w.loop.Post(func() {
		if tab, ok := expansion.ParseFragment(fragment, w.knownTab); ok {
			w.apply(expansion.Event{Kind: expansion.SelectTab, Tab: tab})
		}
	})
}

// Deliver hands an inbound message event to the sync channel on the loop.
func (w *Widget) Deliver(msg wire.Inbound) {
	w.loop.Post(func() { w.ch.Deliver(msg) })
}

// State returns a copy of the current state.
func (w *Widget) State(ctx context.Context) (expansion.State, error) {
	var s expansion.State
	err := w.loop.Call(ctx, func() { s = w.state })
	return s, err
}

func (w *Widget) post(e expansion.Event) {
	w.loop.Post(func() { w.apply(e) })
}

func (w *Widget) onCommand(cmd framesync.Command) {
	switch cmd.Kind {
	case framesync.ToggleExpand:
		w.apply(expansion.Event{Kind: expansion.RemoteToggle})
	case framesync.IframeReady:
		w.sched.Now()
	}
}

func (w *Widget) apply(e expansion.Event) {
	next, tr := expansion.Reduce(w.state, e)
	if !tr.Changed {
		return
	}
	w.state = next
	expansion.SyncFragment(w.location, next.ActiveTab)
	w.refresh()
	if tr.LocalToggle {
		w.sched.Toggled()
	} else {
		w.sched.Changed()
	}
}

func (w *Widget) knownTab(id string) bool {
	for _, t := range w.tabs {
		if t.ID == id {
			return true
		}
	}
	return false
}

// refresh renders the current state and, with a source, fetches the
// listing. Results of superseded fetches are discarded.
func (w *Widget) refresh() {
	listing := ListingFor(w.state, w.tabs, w.cfg.Limits)
	w.gen++
	gen := w.gen
	w.loading = w.source != nil
	w.render(listing)
	if w.source == nil {
		return
	}

	q, limit := listing.Query()
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.FetchTimeout)
	go func() {
		defer cancel()
		items, err := w.source.Articles(ctx, q, limit)
		w.loop.Post(func() {
			if gen != w.gen {
				return
			}
			w.loading = false
			if err != nil {
				w.logger.Warn("widget: fetch articles", "error", err, "tab", w.state.ActiveTab)
			} else {
				w.articles = items
			}
			w.render(ListingFor(w.state, w.tabs, w.cfg.Limits))
			w.sched.Now()
		})
	}()
}

func (w *Widget) render(listing Listing) {
	if w.presenter == nil {
		return
	}
	w.presenter.Render(View{
		Tabs:     append([]Tab(nil), w.tabs...),
		State:    w.state,
		Listing:  listing,
		Articles: w.articles,
		Loading:  w.loading,
	})
}

func (w *Widget) loadTabs() {
	if w.source == nil {
		w.applyFragment()
		return
	}
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.FetchTimeout)
	go func() {
		defer cancel()
		cats, err := w.source.Categories(ctx, true)
		w.loop.Post(func() {
			if err != nil {
				w.logger.Warn("widget: load categories", "error", err)
			} else {
				w.setCategories(cats)
			}
			w.applyFragment()
		})
	}()
}

func (w *Widget) setCategories(cats []content.Category) {
	tabs := []Tab{{ID: expansion.TabAll, Label: w.cfg.AllLabel}}
	for _, c := range cats {
		if c.Slug == "" || c.Slug == expansion.TabAll {
			continue
		}
		tabs = append(tabs, Tab{ID: c.Slug, Label: c.Name, CategoryID: c.ID})
	}
	w.tabs = tabs
}

// applyFragment selects the tab named by the URL fragment once tabs are
// known. Without a change it re-renders so the new tabs show.
func (w *Widget) applyFragment() {
	if w.location != nil {
		if tab, ok := expansion.ParseFragment(w.location.Fragment(), w.knownTab); ok && tab != w.state.ActiveTab {
			w.apply(expansion.Event{Kind: expansion.SelectTab, Tab: tab})
			return
		}
	}
	w.render(ListingFor(w.state, w.tabs, w.cfg.Limits))
	w.sched.Now()
}

// snapshot measures the document for a height report. The expansion flag
// is that of the active listing.
func (w *Widget) snapshot() (int, bool, bool) {
	h, err := w.probe.Measure(w.ctx)
	if err != nil {
		w.logger.Warn("widget: measure height", "error", err)
		return 0, false, false
	}
	return h, w.state.Expanded(), true
}
