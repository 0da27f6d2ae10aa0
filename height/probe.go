// Package height computes the rendered height of the widget document.
//
// Rendering engines disagree on which box metric reflects the full content
// height, and late-loading images or fonts change it after layout. The probe
// therefore takes the maximum of six document metrics, re-read on every call.
package height

import (
	"context"
	"fmt"
)

// Metrics are the six layout values the probe considers, in CSS pixels.
type Metrics struct {
	DocumentScrollHeight int `json:"documentScrollHeight"`
	BodyScrollHeight     int `json:"bodyScrollHeight"`
	DocumentOffsetHeight int `json:"documentOffsetHeight"`
	BodyOffsetHeight     int `json:"bodyOffsetHeight"`
	DocumentClientHeight int `json:"documentClientHeight"`
	BodyClientHeight     int `json:"bodyClientHeight"`
}

// Values returns the metrics in a fixed order.
func (m Metrics) Values() [6]int {
	return [6]int{
		m.DocumentScrollHeight,
		m.BodyScrollHeight,
		m.DocumentOffsetHeight,
		m.BodyOffsetHeight,
		m.DocumentClientHeight,
		m.BodyClientHeight,
	}
}

// Max returns the largest metric. It is never smaller than any of them.
func (m Metrics) Max() int {
	vals := m.Values()
	best := vals[0]
	for _, v := range vals[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// MetricsProvider reads the current layout metrics of a document.
type MetricsProvider interface {
	Metrics(ctx context.Context) (Metrics, error)
}

// ProviderFunc adapts a function to MetricsProvider.
type ProviderFunc func(ctx context.Context) (Metrics, error)

func (f ProviderFunc) Metrics(ctx context.Context) (Metrics, error) { return f(ctx) }

// Static is a MetricsProvider returning fixed values.
type Static Metrics

func (s Static) Metrics(context.Context) (Metrics, error) { return Metrics(s), nil }

// Probe measures document height through a provider. It keeps no state
// between calls.
type Probe struct {
	provider MetricsProvider
}

// NewProbe creates a Probe reading from p.
func NewProbe(p MetricsProvider) *Probe {
	return &Probe{provider: p}
}

// Measure returns the current best-effort document height.
func (p *Probe) Measure(ctx context.Context) (int, error) {
	m, err := p.provider.Metrics(ctx)
	if err != nil {
		return 0, fmt.Errorf("height: read metrics: %w", err)
	}
	return m.Max(), nil
}
