//go:build !(js && wasm)

package height

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
)

// metricsJS returns the six metrics from inside the page. Missing body
// (about:blank before load) reports zeros for the body values.
const metricsJS = `() => {
	const d = document.documentElement;
	const b = document.body || {scrollHeight: 0, offsetHeight: 0, clientHeight: 0};
	return {
		documentScrollHeight: d.scrollHeight,
		bodyScrollHeight: b.scrollHeight,
		documentOffsetHeight: d.offsetHeight,
		bodyOffsetHeight: b.offsetHeight,
		documentClientHeight: d.clientHeight,
		bodyClientHeight: b.clientHeight,
	};
}`

// RodProvider reads metrics from a live Chrome page driven by go-rod. It is
// used to measure a served widget page headlessly, e.g. to calibrate the
// collapsed and expanded heights configured on the host bridge.
type RodProvider struct {
	page *rod.Page
}

// NewRodProvider wraps a rod page.
func NewRodProvider(page *rod.Page) *RodProvider {
	return &RodProvider{page: page}
}

// Metrics evaluates metricsJS in the page.
func (r *RodProvider) Metrics(ctx context.Context) (Metrics, error) {
	res, err := r.page.Context(ctx).Eval(metricsJS)
	if err != nil {
		return Metrics{}, fmt.Errorf("height: eval metrics: %w", err)
	}
	v := res.Value
	return Metrics{
		DocumentScrollHeight: v.Get("documentScrollHeight").Int(),
		BodyScrollHeight:     v.Get("bodyScrollHeight").Int(),
		DocumentOffsetHeight: v.Get("documentOffsetHeight").Int(),
		BodyOffsetHeight:     v.Get("bodyOffsetHeight").Int(),
		DocumentClientHeight: v.Get("documentClientHeight").Int(),
		BodyClientHeight:     v.Get("bodyClientHeight").Int(),
	}, nil
}
