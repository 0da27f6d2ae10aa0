// Package hostbridge runs in the host page. It owns the iframe containers of
// embedded widgets, toggles them between two fixed heights and relays
// expand/collapse intents to and from the widgets.
package hostbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/hubframe/wire"
)

// Default control labels.
const (
	DefaultExpandLabel   = "Lihat Semua"
	DefaultCollapseLabel = "Tutup"
)

// DefaultLoadTimeout bounds how long a frame stays in the loading state
// when its load event is never observed.
const DefaultLoadTimeout = 5 * time.Second

var (
	ErrNoID            = errors.New("hostbridge: instance id is empty")
	ErrNoHeights       = errors.New("hostbridge: collapsed and expanded heights are required")
	ErrUnknownInstance = errors.New("hostbridge: unknown instance")
)

// Frame is the iframe element of one instance.
type Frame interface {
	// SetHeight applies a CSS height such as "600px".
	SetHeight(css string)
	ScrollIntoView()
	// PostMessage posts a string into the frame's content window.
	PostMessage(data, targetOrigin string) error
}

// Loader is implemented by frames that can show a loading state until
// their document has loaded.
type Loader interface {
	SetLoading(loading bool)
}

// Control is the expand/collapse button of one instance.
type Control interface {
	SetLabel(label string)
	SetExpanded(expanded bool)
	// Attached reports whether the control is still in the document.
	Attached() bool
}

// Window delivers resize notifications. OnResize returns a function that
// removes the listener.
type Window interface {
	OnResize(fn func()) (remove func())
}

// InstanceConfig describes one embedded widget.
type InstanceConfig struct {
	ID              string
	CollapsedHeight string
	ExpandedHeight  string
	// Loaded marks a frame whose document finished loading before Attach.
	// No loading state is shown for it.
	Loaded bool
}

// Labels are the control texts for both states.
type Labels struct {
	Expand   string
	Collapse string
}

type record struct {
	cfg          InstanceConfig
	frame        Frame
	control      Control
	expanded     bool
	loading      bool
	loadTimer    *time.Timer
	removeResize func()
}

func (r *record) height() string {
	if r.expanded {
		return r.cfg.ExpandedHeight
	}
	return r.cfg.CollapsedHeight
}

// Bridge holds one toggle record per embedded instance.
type Bridge struct {
	window      Window
	labels      Labels
	loadTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	records map[string]*record
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLabels overrides the control labels. Empty fields keep the default.
func WithLabels(l Labels) Option {
	return func(b *Bridge) {
		if l.Expand != "" {
			b.labels.Expand = l.Expand
		}
		if l.Collapse != "" {
			b.labels.Collapse = l.Collapse
		}
	}
}

// WithLoadTimeout sets how long the loading state may last. Zero keeps it
// until FrameLoaded or the first message from the frame.
func WithLoadTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.loadTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// New creates a Bridge. A nil window means no resize handling.
func New(window Window, opts ...Option) *Bridge {
	b := &Bridge{
		window:      window,
		labels:      Labels{Expand: DefaultExpandLabel, Collapse: DefaultCollapseLabel},
		loadTimeout: DefaultLoadTimeout,
		logger:      slog.Default(),
		records:     make(map[string]*record),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Attach registers an instance: it applies the collapsed height, shows the
// loading state unless cfg.Loaded is set and listens for resizes. The
// loading state ends on FrameLoaded, on the first height request from the
// frame or after the load timeout. Attaching an existing id replaces the
// previous record.
func (b *Bridge) Attach(cfg InstanceConfig, frame Frame, control Control) error {
	if cfg.ID == "" {
		return ErrNoID
	}
	if cfg.CollapsedHeight == "" || cfg.ExpandedHeight == "" {
		return fmt.Errorf("%w (instance %q)", ErrNoHeights, cfg.ID)
	}

	r := &record{cfg: cfg, frame: frame, control: control}
	frame.SetHeight(cfg.CollapsedHeight)
	if l, ok := frame.(Loader); ok && !cfg.Loaded {
		r.loading = true
		l.SetLoading(true)
		if b.loadTimeout > 0 {
			r.loadTimer = time.AfterFunc(b.loadTimeout, func() {
				if b.loaded(r) {
					b.logger.Warn("hostbridge: load not observed, showing frame", "id", cfg.ID)
				}
			})
		}
	}
	if control != nil {
		control.SetLabel(b.labels.Expand)
		control.SetExpanded(false)
	}
	if b.window != nil {
		r.removeResize = b.window.OnResize(func() { b.resize(cfg.ID) })
	}

	b.mu.Lock()
	old := b.records[cfg.ID]
	b.records[cfg.ID] = r
	b.mu.Unlock()

	if old != nil {
		old.release()
	}
	b.logger.Debug("hostbridge: attached", "id", cfg.ID)
	return nil
}

// FrameLoaded clears the loading state of an instance.
func (b *Bridge) FrameLoaded(id string) {
	b.mu.Lock()
	r := b.records[id]
	b.mu.Unlock()
	if r != nil {
		b.loaded(r)
	}
}

// Loading reports whether an instance is still in the loading state.
func (b *Bridge) Loading(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.records[id]
	return r != nil && r.loading
}

// loaded ends the loading state of r once and reports whether it did.
func (b *Bridge) loaded(r *record) bool {
	b.mu.Lock()
	if !r.loading {
		b.mu.Unlock()
		return false
	}
	r.loading = false
	if r.loadTimer != nil {
		r.loadTimer.Stop()
	}
	b.mu.Unlock()
	r.frame.(Loader).SetLoading(false)
	return true
}

func (r *record) release() {
	if r.loadTimer != nil {
		r.loadTimer.Stop()
	}
	if r.removeResize != nil {
		r.removeResize()
	}
}

// Toggle flips an instance between collapsed and expanded and notifies the
// widget inside the frame.
func (b *Bridge) Toggle(id string) error {
	b.mu.Lock()
	r := b.records[id]
	if r == nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	r.expanded = !r.expanded
	expanded, h := r.expanded, r.height()
	b.mu.Unlock()

	r.frame.SetHeight(h)
	if r.control != nil {
		label := b.labels.Expand
		if expanded {
			label = b.labels.Collapse
		}
		r.control.SetLabel(label)
		r.control.SetExpanded(expanded)
	}
	if expanded {
		r.frame.ScrollIntoView()
	}

	msg, err := wire.MarshalString(wire.IframeExpanded{Type: wire.TypeIframeExpanded, IsExpanded: expanded})
	if err != nil {
		return fmt.Errorf("hostbridge: encode toggle: %w", err)
	}
	// The frame content is served by the host itself.
	if err := r.frame.PostMessage(msg, "*"); err != nil {
		b.logger.Warn("hostbridge: notify frame", "id", id, "error", err)
	}
	return nil
}

func (b *Bridge) resize(id string) {
	b.mu.Lock()
	r := b.records[id]
	var h string
	if r != nil {
		h = r.height()
	}
	b.mu.Unlock()
	if r != nil {
		r.frame.SetHeight(h)
	}
}

// HandleMessage handles a message event received by the host window. Only
// requestHeight is understood; the named instance answers with its flag and
// configured height. It reports whether a response was posted.
func (b *Bridge) HandleMessage(data []byte) bool {
	env, ok := wire.Decode(data)
	if !ok || env.Type != wire.TypeRequestHeight {
		return false
	}

	b.mu.Lock()
	r := b.records[env.IframeID]
	var resp wire.SetHeight
	if r != nil {
		resp = wire.SetHeight{Type: wire.TypeSetHeight, IsExpanded: r.expanded, Height: r.height()}
	}
	b.mu.Unlock()
	if r == nil {
		b.logger.Debug("hostbridge: height request for unknown instance", "id", env.IframeID)
		return false
	}
	// The frame document is running, whether or not its load was seen.
	b.loaded(r)

	msg, err := wire.MarshalString(resp)
	if err != nil {
		b.logger.Warn("hostbridge: encode height", "id", env.IframeID, "error", err)
		return false
	}
	if err := r.frame.PostMessage(msg, "*"); err != nil {
		b.logger.Warn("hostbridge: answer height request", "id", env.IframeID, "error", err)
		return false
	}
	return true
}

// Sweep destroys the records whose control has left the document and
// returns their ids.
func (b *Bridge) Sweep() []string {
	var gone []*record
	b.mu.Lock()
	for id, r := range b.records {
		if r.control != nil && !r.control.Attached() {
			gone = append(gone, r)
			delete(b.records, id)
		}
	}
	b.mu.Unlock()

	ids := make([]string, 0, len(gone))
	for _, r := range gone {
		r.release()
		ids = append(ids, r.cfg.ID)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		b.logger.Debug("hostbridge: swept", "ids", ids)
	}
	return ids
}

// Watch sweeps on every document mutation until ctx is done or mutations
// is closed.
func (b *Bridge) Watch(ctx context.Context, mutations <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-mutations:
			if !ok {
				return
			}
			b.Sweep()
		}
	}
}

// Expanded reports the flag of an instance.
func (b *Bridge) Expanded(id string) (expanded, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.records[id]
	if r == nil {
		return false, false
	}
	return r.expanded, true
}

// Len returns the number of live instances.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
