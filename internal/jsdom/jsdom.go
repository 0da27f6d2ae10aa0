//go:build js && wasm

// Package jsdom holds the syscall/js event plumbing shared by the widget
// (widgetdom) and host page (hostdom) adapters.
package jsdom

import (
	"syscall/js"

	"github.com/hazyhaar/hubframe/wire"
)

var (
	global   = js.Global()
	document = global.Get("document")
	jsonObj  = global.Get("JSON")
)

// DocumentComplete reports whether the document and all its frames have
// finished loading.
func DocumentComplete() bool {
	return document.Get("readyState").String() == "complete"
}

// Listen adds an event listener to target and returns its remover. The
// callback is released on removal.
func Listen(target js.Value, event string, fn func(ev js.Value)) (remove func()) {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		var ev js.Value
		if len(args) > 0 {
			ev = args[0]
		}
		fn(ev)
		return nil
	})
	target.Call("addEventListener", event, cb)
	return func() {
		target.Call("removeEventListener", event, cb)
		cb.Release()
	}
}

// Inbound converts a message event. Object payloads are serialised to JSON
// so wire.Decode sees the same bytes for both encodings.
func Inbound(ev js.Value) wire.Inbound {
	data := ev.Get("data")
	var raw string
	if data.Type() == js.TypeString {
		raw = data.String()
	} else {
		raw = jsonObj.Call("stringify", data).String()
	}
	return wire.Inbound{Origin: ev.Get("origin").String(), Data: []byte(raw)}
}

// OnMessage delivers every message event received by the window.
func OnMessage(fn func(wire.Inbound)) (remove func()) {
	return Listen(global, "message", func(ev js.Value) { fn(Inbound(ev)) })
}

// Mutations signals on every change under the document body until stop is
// called.
func Mutations() (signals <-chan struct{}, stop func()) {
	ch := make(chan struct{}, 1)
	cb := js.FuncOf(func(js.Value, []js.Value) any {
		select {
		case ch <- struct{}{}:
		default:
		}
		return nil
	})
	obs := global.Get("MutationObserver").New(cb)
	obs.Call("observe", document.Get("body"), map[string]any{"childList": true, "subtree": true})
	return ch, func() {
		obs.Call("disconnect")
		cb.Release()
	}
}
