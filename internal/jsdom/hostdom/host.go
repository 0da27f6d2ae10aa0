//go:build js && wasm

// Package hostdom binds the host bridge interfaces to the host page DOM.
package hostdom

import (
	"fmt"
	"strings"
	"syscall/js"

	"github.com/hazyhaar/hubframe/internal/jsdom"
)

var (
	global   = js.Global()
	document = global.Get("document")
)

// Frame is an iframe element and its container.
type Frame struct {
	el        js.Value
	container js.Value
}

// NewFrame wraps an iframe. The container, when valid, carries the
// "loading" class while the frame loads.
func NewFrame(iframe, container js.Value) *Frame {
	return &Frame{el: iframe, container: container}
}

func (f *Frame) SetHeight(css string) {
	f.el.Get("style").Set("height", css)
}

func (f *Frame) ScrollIntoView() {
	if f.el.Get("scrollIntoView").Type() == js.TypeFunction {
		f.el.Call("scrollIntoView", map[string]any{"behavior": "smooth", "block": "nearest"})
	}
}

func (f *Frame) PostMessage(data, targetOrigin string) error {
	w := f.el.Get("contentWindow")
	if !w.Truthy() {
		return fmt.Errorf("hostdom: frame %s has no content window", f.el.Get("id").String())
	}
	w.Call("postMessage", data, targetOrigin)
	return nil
}

// SetLoading hides the frame until its document has loaded.
func (f *Frame) SetLoading(loading bool) {
	style := f.el.Get("style")
	if loading {
		style.Set("opacity", "0")
		style.Set("transition", "opacity 0.3s ease, height 0.3s ease")
	} else {
		style.Set("opacity", "1")
	}
	if f.container.Truthy() {
		f.container.Get("classList").Call("toggle", "loading", loading)
	}
}

// OnLoad calls fn when the frame document has loaded.
func (f *Frame) OnLoad(fn func()) (remove func()) {
	return jsdom.Listen(f.el, "load", func(js.Value) { fn() })
}

// Control is the expand/collapse button.
type Control struct {
	el js.Value
}

// NewControl wraps a button element.
func NewControl(el js.Value) *Control { return &Control{el: el} }

func (c *Control) SetLabel(label string) { c.el.Set("textContent", label) }

func (c *Control) SetExpanded(expanded bool) {
	c.el.Get("classList").Call("toggle", "expanded", expanded)
}

func (c *Control) Attached() bool {
	return document.Get("body").Call("contains", c.el).Bool()
}

// OnClick calls fn on every click.
func (c *Control) OnClick(fn func()) (remove func()) {
	return jsdom.Listen(c.el, "click", func(js.Value) { fn() })
}

// Attr returns an attribute value, "" when absent.
func (c *Control) Attr(name string) string {
	v := c.el.Call("getAttribute", name)
	if v.IsNull() {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// Window is the host window.
type Window struct{}

func (Window) OnResize(fn func()) (remove func()) {
	return jsdom.Listen(global, "resize", func(js.Value) { fn() })
}

// QueryAll returns the elements matching selector.
func QueryAll(selector string) []js.Value {
	list := document.Call("querySelectorAll", selector)
	out := make([]js.Value, list.Length())
	for i := range out {
		out[i] = list.Index(i)
	}
	return out
}

// ByID returns the element with id, or an undefined value.
func ByID(id string) js.Value {
	el := document.Call("getElementById", id)
	if el.IsNull() {
		return js.Undefined()
	}
	return el
}

// Closest returns the nearest ancestor of el matching selector.
func Closest(el js.Value, selector string) js.Value {
	v := el.Call("closest", selector)
	if v.IsNull() {
		return js.Undefined()
	}
	return v
}
