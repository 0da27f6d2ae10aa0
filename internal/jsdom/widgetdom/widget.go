//go:build js && wasm

// Package widgetdom binds the widget to the document served in the iframe.
package widgetdom

import (
	"context"
	"fmt"
	"html"
	"strings"
	"syscall/js"

	"github.com/hazyhaar/hubframe/height"
	"github.com/hazyhaar/hubframe/internal/jsdom"
	"github.com/hazyhaar/hubframe/widget"
)

var (
	global   = js.Global()
	document = global.Get("document")
	jsonObj  = global.Get("JSON")
)

// Metrics reads the six height metrics of the current document.
type Metrics struct{}

func (Metrics) Metrics(context.Context) (height.Metrics, error) {
	d := document.Get("documentElement")
	b := document.Get("body")
	m := height.Metrics{
		DocumentScrollHeight: d.Get("scrollHeight").Int(),
		DocumentOffsetHeight: d.Get("offsetHeight").Int(),
		DocumentClientHeight: d.Get("clientHeight").Int(),
	}
	if b.Truthy() {
		m.BodyScrollHeight = b.Get("scrollHeight").Int()
		m.BodyOffsetHeight = b.Get("offsetHeight").Int()
		m.BodyClientHeight = b.Get("clientHeight").Int()
	}
	return m, nil
}

// Parent posts to the embedding window. Payloads are posted as objects.
type Parent struct{}

func (Parent) PostMessage(data []byte, targetOrigin string) error {
	parent := global.Get("parent")
	if !parent.Truthy() || parent.Equal(global) {
		return fmt.Errorf("widgetdom: not embedded")
	}
	parent.Call("postMessage", jsonObj.Call("parse", string(data)), targetOrigin)
	return nil
}

// Location is the widget's own URL fragment.
type Location struct{}

func (Location) Fragment() string {
	return strings.TrimPrefix(global.Get("location").Get("hash").String(), "#")
}

// ReplaceFragment rewrites the fragment without adding a history entry.
func (Location) ReplaceFragment(f string) {
	global.Get("history").Call("replaceState", js.Null(), "", "#"+f)
}

// PageURL returns location.href and document.referrer.
func PageURL() (href, referrer string) {
	return global.Get("location").Get("href").String(), document.Get("referrer").String()
}

// Presenter renders views into a root element with plain markup. Clicks
// are delegated through data attributes to the widget. The search box is
// created once so it keeps focus across renders.
type Presenter struct {
	root    js.Value
	search  js.Value
	content js.Value
	remove  []func()
}

// NewPresenter renders into the element with the given id and routes user
// input to w.
func NewPresenter(id string, w *widget.Widget) *Presenter {
	p := &Presenter{root: document.Call("getElementById", id)}
	if !p.root.Truthy() {
		p.root = document.Get("body")
	}
	p.search = document.Call("createElement", "input")
	p.search.Set("type", "search")
	p.search.Set("placeholder", "Cari artikel")
	p.content = document.Call("createElement", "div")
	p.root.Call("replaceChildren", p.search, p.content)

	p.remove = append(p.remove,
		jsdom.Listen(p.content, "click", func(ev js.Value) {
			t := ev.Get("target")
			if tab := t.Call("getAttribute", "data-tab"); !tab.IsNull() {
				w.SelectTab(tab.String())
				return
			}
			if !t.Call("getAttribute", "data-toggle").IsNull() {
				w.Toggle()
			}
		}),
		jsdom.Listen(p.search, "input", func(js.Value) {
			w.SetSearch(p.search.Get("value").String())
		}),
		jsdom.Listen(global, "hashchange", func(js.Value) {
			w.HashChanged(Location{}.Fragment())
		}),
	)
	return p
}

// Close removes the input listeners.
func (p *Presenter) Close() {
	for _, r := range p.remove {
		r()
	}
}

func (p *Presenter) Render(v widget.View) {
	var b strings.Builder
	b.WriteString(`<nav class="hubframe-tabs">`)
	for _, t := range v.Tabs {
		cls := "tab"
		if t.ID == v.State.ActiveTab {
			cls += " active"
		}
		fmt.Fprintf(&b, `<button class="%s" data-tab="%s">%s</button>`, cls, html.EscapeString(t.ID), html.EscapeString(t.Label))
	}
	b.WriteString(`</nav>`)

	fmt.Fprintf(&b, `<section class="hubframe-%s">`, v.Listing.Mode)
	if v.Loading && len(v.Articles) == 0 {
		b.WriteString(`<p class="loading">…</p>`)
	}
	for _, a := range v.Articles {
		b.WriteString(`<article>`)
		if a.Image != "" {
			fmt.Fprintf(&b, `<img src="%s" alt="" loading="lazy">`, html.EscapeString(a.Image))
		}
		fmt.Fprintf(&b, `<a href="%s" target="_top">%s</a><p>%s</p></article>`,
			html.EscapeString(a.Link), html.EscapeString(a.Title), html.EscapeString(a.Excerpt))
	}
	b.WriteString(`</section>`)

	label := "Lihat Semua"
	if v.State.Expanded() {
		label = "Tutup"
	}
	fmt.Fprintf(&b, `<button class="hubframe-toggle" data-toggle>%s</button>`, label)

	display := "none"
	if v.State.OnAll() {
		display = ""
	}
	p.search.Get("style").Set("display", display)
	p.content.Set("innerHTML", b.String())
}
