package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/hubframe/content"
	"github.com/hazyhaar/hubframe/expansion"
	"github.com/hazyhaar/hubframe/framesync"
	"github.com/hazyhaar/hubframe/height"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/uiloop"
	"github.com/hazyhaar/hubframe/wire"
)

const trusted = origin.Origin("https://shop.example.com")

type parent struct {
	mu      sync.Mutex
	reports []wire.HeightReport
}

func (p *parent) PostMessage(data []byte, _ string) error {
	var hr wire.HeightReport
	if err := json.Unmarshal(data, &hr); err != nil {
		return err
	}
	p.mu.Lock()
	p.reports = append(p.reports, hr)
	p.mu.Unlock()
	return nil
}

func (p *parent) all() []wire.HeightReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wire.HeightReport(nil), p.reports...)
}

func (p *parent) last() (wire.HeightReport, bool) {
	all := p.all()
	if len(all) == 0 {
		return wire.HeightReport{}, false
	}
	return all[len(all)-1], true
}

type screen struct {
	mu    sync.Mutex
	views []View
}

func (s *screen) Render(v View) {
	s.mu.Lock()
	s.views = append(s.views, v)
	s.mu.Unlock()
}

func (s *screen) last() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return View{}
	}
	return s.views[len(s.views)-1]
}

// height of the rendered document: a header plus one row per article.
func (s *screen) metrics(context.Context) (height.Metrics, error) {
	v := s.last()
	h := 200 + 100*len(v.Articles)
	return height.Metrics{DocumentScrollHeight: h, BodyOffsetHeight: h - 10}, nil
}

type catalog struct {
	total int
	gate  chan struct{} // when set, uncategorised fetches wait on it
}

func (c *catalog) Categories(context.Context, bool) ([]content.Category, error) {
	return []content.Category{
		{ID: 7, Slug: "skincare-tips", Name: "Skincare Tips", Count: 12},
		{ID: 9, Slug: "", Name: "broken"},
	}, nil
}

func (c *catalog) Articles(ctx context.Context, q content.Query, limit int) ([]content.Article, error) {
	if c.gate != nil && q.CategoryID == 0 {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	n := c.total
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]content.Article, n)
	for i := range out {
		out[i] = content.Article{ID: i + 1, Title: fmt.Sprintf("post %d in %d", i+1, q.CategoryID)}
		if q.CategoryID != 0 {
			out[i].Categories = []string{"Skincare Tips"}
		}
	}
	return out, nil
}

type location struct {
	mu       sync.Mutex
	fragment string
}

func (l *location) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

func (l *location) ReplaceFragment(f string) {
	l.mu.Lock()
	l.fragment = f
	l.mu.Unlock()
}

type harness struct {
	w      *Widget
	parent *parent
	screen *screen
	loc    *location
}

func newHarness(t *testing.T, src Source, fragment string) *harness {
	t.Helper()
	loop := uiloop.New(uiloop.WithFrameInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	h := &harness{parent: &parent{}, screen: &screen{}, loc: &location{fragment: fragment}}
	h.w = New(Config{ReflowDelay: 20 * time.Millisecond}, Deps{
		Loop:      loop,
		Channel:   framesync.NewChannel(framesync.Config{Origin: trusted}, h.parent),
		Probe:     height.NewProbe(height.ProviderFunc(h.screen.metrics)),
		Presenter: h.screen,
		Source:    src,
		Location:  h.loc,
	})
	h.w.Start(ctx)
	t.Cleanup(func() {
		h.w.Close()
		cancel()
		<-loop.Done()
	})
	return h
}

func (h *harness) state(t *testing.T) expansion.State {
	t.Helper()
	s, err := h.w.State(context.Background())
	require.NoError(t, err)
	return s
}

func (h *harness) waitTabs(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.screen.last().Tabs) == n }, time.Second, time.Millisecond)
}

func (h *harness) deliver(data string) {
	h.w.Deliver(wire.Inbound{Origin: string(trusted), Data: []byte(data)})
}

func TestListingFor(t *testing.T) {
	tabs := []Tab{{ID: expansion.TabAll}, {ID: "skincare-tips", CategoryID: 7}}
	cases := []struct {
		name  string
		state expansion.State
		want  Listing
	}{
		{"all collapsed", expansion.State{ActiveTab: "all"}, Listing{Mode: ModeSlider, Limit: 8}},
		{"all expanded", expansion.State{ActiveTab: "all", LatestExpanded: true}, Listing{Mode: ModeGrid}},
		{"category collapsed", expansion.State{ActiveTab: "skincare-tips"}, Listing{Mode: ModePreview, Limit: 6, CategoryID: 7}},
		{"category expanded", expansion.State{ActiveTab: "skincare-tips", CategoryExpanded: true}, Listing{Mode: ModeGrid, CategoryID: 7}},
		{"latest flag ignored off all", expansion.State{ActiveTab: "skincare-tips", LatestExpanded: true}, Listing{Mode: ModePreview, Limit: 6, CategoryID: 7}},
		{"search passes through", expansion.State{ActiveTab: "all", Search: "serum"}, Listing{Mode: ModeSlider, Limit: 8, Search: "serum"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ListingFor(tc.state, tabs, Limits{}))
		})
	}
}

func TestWidget_ExpandLatest(t *testing.T) {
	// WHAT: expanding on the "all" tab swaps the 8-item slider for the full
	// grid and the host learns the new height with isExpanded set.
	h := newHarness(t, &catalog{total: 30}, "")

	require.Eventually(t, func() bool {
		v := h.screen.last()
		return v.Listing.Mode == ModeSlider && len(v.Articles) == 8
	}, time.Second, time.Millisecond)

	h.w.Toggle()

	require.Eventually(t, func() bool {
		v := h.screen.last()
		return v.Listing.Mode == ModeGrid && len(v.Articles) == 30
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		r, ok := h.parent.last()
		return ok && r.IsExpanded && r.Height == 3200
	}, time.Second, time.Millisecond)
	assert.Equal(t, wire.TypeHeight, h.parent.all()[0].Type)
}

func TestWidget_RemoteToggleOnCategoryTab(t *testing.T) {
	// WHAT: TOGGLE_EXPAND flips the latest listing even when a category is active.
	h := newHarness(t, &catalog{total: 30}, "")
	h.waitTabs(t, 2)

	h.w.SelectTab("skincare-tips")
	h.deliver(`{"type":"TOGGLE_EXPAND"}`)

	require.Eventually(t, func() bool { return h.state(t).LatestExpanded }, time.Second, time.Millisecond)
	s := h.state(t)
	assert.Equal(t, "skincare-tips", s.ActiveTab)
	assert.False(t, s.CategoryExpanded)
}

func TestWidget_IgnoresUnknownMessages(t *testing.T) {
	h := newHarness(t, &catalog{total: 30}, "")
	h.waitTabs(t, 2)
	before := h.state(t)

	h.deliver(`{"foo":1}`)
	h.deliver(`not json`)
	h.w.Deliver(wire.Inbound{Origin: "https://evil.example", Data: []byte(`{"type":"TOGGLE_EXPAND"}`)})

	assert.Equal(t, before, h.state(t))
}

func TestWidget_IframeReadyReports(t *testing.T) {
	h := newHarness(t, nil, "")
	require.Eventually(t, func() bool { return len(h.parent.all()) >= 2 }, time.Second, time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	n := len(h.parent.all())

	h.deliver(`"{\"type\":\"IFRAME_READY\"}"`)

	require.Eventually(t, func() bool { return len(h.parent.all()) == n+1 }, time.Second, time.Millisecond)
}

func TestWidget_FragmentSelectsTab(t *testing.T) {
	h := newHarness(t, &catalog{total: 30}, "skincare-tips")

	require.Eventually(t, func() bool { return h.state(t).ActiveTab == "skincare-tips" }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		v := h.screen.last()
		return v.Listing.Mode == ModePreview && len(v.Articles) == 6 && v.Listing.CategoryID == 7
	}, time.Second, time.Millisecond)
}

func TestWidget_UnknownFragmentIgnored(t *testing.T) {
	h := newHarness(t, &catalog{total: 30}, "no-such-tab")
	h.waitTabs(t, 2)

	assert.Equal(t, expansion.TabAll, h.state(t).ActiveTab)
	h.w.HashChanged("#also-missing")
	assert.Equal(t, expansion.TabAll, h.state(t).ActiveTab)

	h.w.HashChanged("#skincare-tips")
	assert.Equal(t, "skincare-tips", h.state(t).ActiveTab)
}

func TestWidget_SelectUnknownTabIgnored(t *testing.T) {
	// WHAT: selecting an id that names no loaded tab keeps the current tab.
	// WHY: an unknown id would otherwise show an unfiltered category listing.
	h := newHarness(t, &catalog{total: 30}, "")
	h.waitTabs(t, 2)

	h.w.SelectTab("no-such-tab")
	s := h.state(t)
	assert.Equal(t, expansion.TabAll, s.ActiveTab)
	assert.Equal(t, "", h.loc.Fragment())

	h.w.SelectTab("skincare-tips")
	assert.Equal(t, "skincare-tips", h.state(t).ActiveTab)
}

func TestWidget_TabChangeWritesFragment(t *testing.T) {
	h := newHarness(t, &catalog{total: 30}, "")
	h.waitTabs(t, 2)

	h.w.SelectTab("skincare-tips")
	require.Eventually(t, func() bool { return h.loc.Fragment() == "skincare-tips" }, time.Second, time.Millisecond)

	h.w.SelectTab(expansion.TabAll)
	require.Eventually(t, func() bool { return h.loc.Fragment() == expansion.TabAll }, time.Second, time.Millisecond)
}

func TestWidget_LastReportMatchesFinalState(t *testing.T) {
	// WHAT: after any burst of transitions the last report carries the final
	// height and expansion flag.
	// WHY: delayed reports from earlier transitions must not win.
	h := newHarness(t, &catalog{total: 30}, "")
	h.waitTabs(t, 2)

	h.w.ToggleLatest()
	h.w.SelectTab("skincare-tips")
	h.w.ToggleCategory()
	h.w.SetSearch("serum")
	h.w.SelectTab(expansion.TabAll)
	h.w.ToggleLatest()
	h.w.ToggleLatest()

	want := wire.NewHeightReport(200+100*30, true)
	require.Eventually(t, func() bool {
		r, _ := h.parent.last()
		return r == want
	}, 2*time.Second, time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	r, _ := h.parent.last()
	assert.Equal(t, want, r)
	s := h.state(t)
	assert.True(t, s.LatestExpanded)
	assert.Equal(t, "serum", s.Search)
}

func TestWidget_StaleFetchDiscarded(t *testing.T) {
	// WHAT: a slow response for a superseded listing does not overwrite the
	// current one.
	src := &catalog{total: 30, gate: make(chan struct{})}
	h := newHarness(t, src, "")
	h.waitTabs(t, 2)

	h.w.SelectTab("skincare-tips")
	require.Eventually(t, func() bool {
		v := h.screen.last()
		return !v.Loading && len(v.Articles) == 6
	}, time.Second, time.Millisecond)

	close(src.gate)
	time.Sleep(30 * time.Millisecond)

	v := h.screen.last()
	require.Len(t, v.Articles, 6)
	assert.Equal(t, []string{"Skincare Tips"}, v.Articles[0].Categories)
}

func TestWidget_WithoutSource(t *testing.T) {
	h := newHarness(t, nil, "")
	require.Eventually(t, func() bool { return len(h.parent.all()) >= 2 }, time.Second, time.Millisecond)

	v := h.screen.last()
	assert.False(t, v.Loading)
	assert.Equal(t, []Tab{{ID: expansion.TabAll, Label: "Semua Artikel"}}, v.Tabs)
	r, _ := h.parent.last()
	assert.Equal(t, 200, r.Height)
}
