package hostbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/hubframe/wire"
)

type fakeFrame struct {
	mu       sync.Mutex
	heights  []string
	scrolls  int
	loading  bool
	loadings int
	messages []string
	targets  []string
	postErr  error
}

func (f *fakeFrame) SetHeight(css string) {
	f.mu.Lock()
	f.heights = append(f.heights, css)
	f.mu.Unlock()
}

func (f *fakeFrame) ScrollIntoView() {
	f.mu.Lock()
	f.scrolls++
	f.mu.Unlock()
}

func (f *fakeFrame) SetLoading(loading bool) {
	f.mu.Lock()
	f.loading = loading
	f.loadings++
	f.mu.Unlock()
}

func (f *fakeFrame) isLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *fakeFrame) PostMessage(data, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	f.targets = append(f.targets, target)
	return f.postErr
}

func (f *fakeFrame) height() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.heights) == 0 {
		return ""
	}
	return f.heights[len(f.heights)-1]
}

func (f *fakeFrame) lastMessage(t *testing.T, v any) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	require.NoError(t, json.Unmarshal([]byte(f.messages[len(f.messages)-1]), v))
	return f.targets[len(f.targets)-1]
}

type fakeControl struct {
	mu       sync.Mutex
	label    string
	expanded bool
	detached bool
}

func (c *fakeControl) SetLabel(l string)  { c.mu.Lock(); c.label = l; c.mu.Unlock() }
func (c *fakeControl) SetExpanded(e bool) { c.mu.Lock(); c.expanded = e; c.mu.Unlock() }
func (c *fakeControl) Attached() bool     { c.mu.Lock(); defer c.mu.Unlock(); return !c.detached }
func (c *fakeControl) detach()            { c.mu.Lock(); c.detached = true; c.mu.Unlock() }
func (c *fakeControl) state() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label, c.expanded
}

type fakeWindow struct {
	mu        sync.Mutex
	listeners map[int]func()
	next      int
}

func (w *fakeWindow) OnResize(fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listeners == nil {
		w.listeners = make(map[int]func())
	}
	id := w.next
	w.next++
	w.listeners[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

func (w *fakeWindow) resize() {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (w *fakeWindow) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

var w1 = InstanceConfig{ID: "w1", CollapsedHeight: "600px", ExpandedHeight: "2400px"}

func attach(t *testing.T, b *Bridge, cfg InstanceConfig) (*fakeFrame, *fakeControl) {
	t.Helper()
	f, c := &fakeFrame{}, &fakeControl{}
	require.NoError(t, b.Attach(cfg, f, c))
	return f, c
}

func TestAttach_AppliesCollapsedState(t *testing.T) {
	win := &fakeWindow{}
	b := New(win)
	f, c := attach(t, b, w1)

	assert.Equal(t, "600px", f.height())
	assert.True(t, f.isLoading())
	assert.True(t, b.Loading("w1"))
	label, expanded := c.state()
	assert.Equal(t, "Lihat Semua", label)
	assert.False(t, expanded)
	assert.Equal(t, 1, win.count())

	b.FrameLoaded("w1")
	assert.False(t, f.isLoading())
	assert.False(t, b.Loading("w1"))
}

func TestAttach_FrameLoadedBeforeAttach(t *testing.T) {
	// WHAT: a frame whose document loaded before the bridge started is never
	// hidden.
	// WHY: its load event is gone, so nothing would clear the loading state.
	b := New(nil)
	cfg := w1
	cfg.Loaded = true
	f, _ := attach(t, b, cfg)

	assert.False(t, f.isLoading())
	assert.Equal(t, 0, f.loadings)
	assert.False(t, b.Loading("w1"))

	b.FrameLoaded("w1")
	assert.Equal(t, 0, f.loadings)
}

func TestAttach_LoadTimeoutShowsFrame(t *testing.T) {
	// WHAT: a missed load event ends the loading state after the timeout.
	b := New(nil, WithLoadTimeout(10*time.Millisecond))
	f, _ := attach(t, b, w1)
	require.True(t, f.isLoading())

	require.Eventually(t, func() bool { return !f.isLoading() }, time.Second, time.Millisecond)
	assert.False(t, b.Loading("w1"))

	b.FrameLoaded("w1")
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 2, f.loadings, "loading cleared once")
}

func TestAttach_NoLoadTimeout(t *testing.T) {
	b := New(nil, WithLoadTimeout(0))
	f, _ := attach(t, b, w1)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.isLoading())
}

func TestHandleMessage_RequestHeightEndsLoading(t *testing.T) {
	// WHAT: a height request proves the frame document runs, so the frame is
	// shown even when its load event was never seen.
	b := New(nil, WithLoadTimeout(0))
	f, _ := attach(t, b, w1)
	require.True(t, f.isLoading())

	require.True(t, b.HandleMessage([]byte(`{"type":"requestHeight","iframeId":"w1"}`)))
	assert.False(t, f.isLoading())
	assert.False(t, b.Loading("w1"))
}

func TestAttach_Validation(t *testing.T) {
	b := New(nil)
	require.ErrorIs(t, b.Attach(InstanceConfig{CollapsedHeight: "1px", ExpandedHeight: "2px"}, &fakeFrame{}, nil), ErrNoID)
	require.ErrorIs(t, b.Attach(InstanceConfig{ID: "x", CollapsedHeight: "1px"}, &fakeFrame{}, nil), ErrNoHeights)
	assert.Equal(t, 0, b.Len())
}

func TestAttach_ReplaceDropsOldListener(t *testing.T) {
	win := &fakeWindow{}
	b := New(win)
	attach(t, b, w1)
	attach(t, b, w1)
	assert.Equal(t, 1, win.count())
	assert.Equal(t, 1, b.Len())
}

func TestToggle_ExpandAndCollapse(t *testing.T) {
	b := New(nil)
	f, c := attach(t, b, w1)

	require.NoError(t, b.Toggle("w1"))
	assert.Equal(t, "2400px", f.height())
	assert.Equal(t, 1, f.scrolls)
	label, expanded := c.state()
	assert.Equal(t, "Tutup", label)
	assert.True(t, expanded)

	var msg wire.IframeExpanded
	assert.Equal(t, "*", f.lastMessage(t, &msg))
	assert.Equal(t, wire.IframeExpanded{Type: "iframeExpanded", IsExpanded: true}, msg)

	require.NoError(t, b.Toggle("w1"))
	assert.Equal(t, "600px", f.height())
	assert.Equal(t, 1, f.scrolls, "collapse does not scroll")
	label, expanded = c.state()
	assert.Equal(t, "Lihat Semua", label)
	assert.False(t, expanded)
	f.lastMessage(t, &msg)
	assert.False(t, msg.IsExpanded)
}

func TestToggle_Unknown(t *testing.T) {
	b := New(nil)
	require.ErrorIs(t, b.Toggle("nope"), ErrUnknownInstance)
}

func TestToggle_PostFailureIsLogged(t *testing.T) {
	b := New(nil)
	f := &fakeFrame{postErr: errors.New("detached window")}
	require.NoError(t, b.Attach(w1, f, nil))
	require.NoError(t, b.Toggle("w1"))
	assert.Equal(t, "2400px", f.height())
}

func TestLabels_Configurable(t *testing.T) {
	b := New(nil, WithLabels(Labels{Expand: "Show all"}))
	_, c := attach(t, b, w1)
	label, _ := c.state()
	assert.Equal(t, "Show all", label)
	require.NoError(t, b.Toggle("w1"))
	label, _ = c.state()
	assert.Equal(t, "Tutup", label)
}

func TestResize_ReappliesCurrentHeight(t *testing.T) {
	win := &fakeWindow{}
	b := New(win)
	f, _ := attach(t, b, w1)
	require.NoError(t, b.Toggle("w1"))

	f.SetHeight("123px") // layout clobbered by the page
	win.resize()
	assert.Equal(t, "2400px", f.height())
}

func TestHandleMessage_RequestHeight(t *testing.T) {
	// WHAT: requestHeight for an expanded instance answers with its expanded height.
	b := New(nil)
	f, _ := attach(t, b, w1)
	require.NoError(t, b.Toggle("w1"))

	require.True(t, b.HandleMessage([]byte(`{"type":"requestHeight","iframeId":"w1"}`)))

	var resp wire.SetHeight
	assert.Equal(t, "*", f.lastMessage(t, &resp))
	assert.Equal(t, wire.SetHeight{Type: "setHeight", IsExpanded: true, Height: "2400px"}, resp)
}

func TestHandleMessage_Ignored(t *testing.T) {
	b := New(nil)
	f, _ := attach(t, b, w1)

	for _, raw := range []string{
		`{"foo":1}`,
		`garbage`,
		`{"type":"requestHeight","iframeId":"w2"}`,
		`{"type":"REACT_APP_HEIGHT","height":900}`,
	} {
		assert.False(t, b.HandleMessage([]byte(raw)), raw)
	}
	assert.Empty(t, f.messages)
}

func TestHandleMessage_StringEncoded(t *testing.T) {
	b := New(nil)
	f, _ := attach(t, b, w1)
	require.True(t, b.HandleMessage([]byte(`"{\"type\":\"requestHeight\",\"iframeId\":\"w1\"}"`)))

	var resp wire.SetHeight
	f.lastMessage(t, &resp)
	assert.Equal(t, "600px", resp.Height)
	assert.False(t, resp.IsExpanded)
}

func TestSweep_RemovesDetached(t *testing.T) {
	win := &fakeWindow{}
	b := New(win)
	_, c1 := attach(t, b, w1)
	attach(t, b, InstanceConfig{ID: "w2", CollapsedHeight: "500px", ExpandedHeight: "1500px"})

	assert.Empty(t, b.Sweep())
	c1.detach()
	assert.Equal(t, []string{"w1"}, b.Sweep())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, win.count())
	_, ok := b.Expanded("w1")
	assert.False(t, ok)
}

func TestWatch_SweepsOnMutation(t *testing.T) {
	win := &fakeWindow{}
	b := New(win)
	_, c := attach(t, b, w1)

	mutations := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Watch(ctx, mutations)
		close(done)
	}()

	mutations <- struct{}{}
	assert.Equal(t, 1, b.Len())

	c.detach()
	mutations <- struct{}{}
	require.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, win.count())

	cancel()
	<-done
}
