// Package framesync is the widget's endpoint of the cross-document protocol.
//
// Outbound, it reports the widget height to the parent window scoped to the
// trusted origin, and mirrors each report to an out-of-band HTTP beacon.
// Inbound, it turns TOGGLE_EXPAND and IFRAME_READY messages into commands.
// Delivery order across the boundary is not guaranteed; receivers treat the
// latest report they receive as authoritative.
package framesync

import (
	"log/slog"
	"sync"

	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/wire"
)

// Poster delivers a message to the parent window. data is a JSON object.
type Poster interface {
	PostMessage(data []byte, targetOrigin string) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(data []byte, targetOrigin string) error

func (f PosterFunc) PostMessage(data []byte, targetOrigin string) error { return f(data, targetOrigin) }

// CommandKind identifies an inbound remote command.
type CommandKind int

const (
	// ToggleExpand flips the latest-listing expansion flag.
	ToggleExpand CommandKind = iota + 1
	// IframeReady asks for an immediate height report.
	IframeReady
)

func (k CommandKind) String() string {
	switch k {
	case ToggleExpand:
		return wire.TypeToggleExpand
	case IframeReady:
		return wire.TypeIframeReady
	default:
		return "unknown"
	}
}

// Command is a recognised inbound message.
type Command struct {
	Kind   CommandKind
	Origin string
}

// Config controls the trust boundary of a Channel.
type Config struct {
	// Origin is the resolved trusted origin.
	Origin origin.Origin
	// AllowWildcard permits posting to "*" when Origin is unknown. Off by
	// default: reports are skipped instead.
	AllowWildcard bool
	// AcceptAnyOrigin disables the inbound sender-origin check. Off by
	// default: only messages from Origin are accepted.
	AcceptAnyOrigin bool
}

// Channel sends height reports and dispatches remote commands.
type Channel struct {
	cfg    Config
	parent Poster
	beacon *Beacon
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscription]func(Command)
	closed bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithBeacon mirrors every height report to b.
func WithBeacon(b *Beacon) Option {
	return func(c *Channel) { c.beacon = b }
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// NewChannel creates a Channel posting to parent.
func NewChannel(cfg Config, parent Poster, opts ...Option) *Channel {
	c := &Channel{
		cfg:    cfg,
		parent: parent,
		logger: slog.Default(),
		subs:   make(map[*Subscription]func(Command)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Origin returns the trusted origin the channel was created with.
func (c *Channel) Origin() origin.Origin { return c.cfg.Origin }

// ReportHeight posts a REACT_APP_HEIGHT message to the parent and hands the
// same report to the beacon. Failures are logged, never returned.
func (c *Channel) ReportHeight(height int, isExpanded bool) {
	report := wire.NewHeightReport(height, isExpanded)

	if target, ok := c.cfg.Origin.Target(c.cfg.AllowWildcard); !ok {
		c.logger.Warn("framesync: trusted origin unknown, height report not posted",
			"height", height, "expanded", isExpanded)
	} else if data, err := wire.Marshal(report); err != nil {
		c.logger.Error("framesync: marshal height report", "error", err)
	} else if err := c.parent.PostMessage(data, target); err != nil {
		c.logger.Warn("framesync: post height report", "error", err, "target", target)
	}

	if c.beacon != nil {
		c.beacon.Send(report)
	}
}

// Subscription is a registered command handler.
type Subscription struct {
	ch   *Channel
	once sync.Once
}

// Cancel removes the handler. Calling it more than once is a no-op.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.ch.mu.Lock()
		delete(s.ch.subs, s)
		s.ch.mu.Unlock()
	})
}

// OnRemoteCommand registers handler for recognised inbound commands. On a
// closed channel the returned subscription is inert.
func (c *Channel) OnRemoteCommand(handler func(Command)) *Subscription {
	sub := &Subscription{ch: c}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || handler == nil {
		return sub
	}
	c.subs[sub] = handler
	return sub
}

// Deliver processes one inbound message event. Malformed payloads, unknown
// types and messages from untrusted senders are ignored.
func (c *Channel) Deliver(msg wire.Inbound) {
	env, ok := wire.Decode(msg.Data)
	if !ok {
		return
	}
	var kind CommandKind
	switch env.Type {
	case wire.TypeToggleExpand:
		kind = ToggleExpand
	case wire.TypeIframeReady:
		kind = IframeReady
	default:
		return
	}
	if !c.cfg.AcceptAnyOrigin && !c.cfg.Origin.Matches(msg.Origin) {
		c.logger.Debug("framesync: command from untrusted sender dropped",
			"type", env.Type, "sender", msg.Origin, "trusted", c.cfg.Origin.String())
		return
	}

	c.mu.Lock()
	handlers := make([]func(Command), 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	cmd := Command{Kind: kind, Origin: msg.Origin}
	for _, h := range handlers {
		h(cmd)
	}
}

// Close drops every handler. Later registrations are inert.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = make(map[*Subscription]func(Command))
}
