//go:build js && wasm

// Command hubbridge runs in the host page, compiled to wasm. It binds every
// expand control of the form
//
//	<div class="hubframe-container">
//	  <iframe id="w1" src="https://widgets.example.com/?wpOrigin=https://shop.example.com"></iframe>
//	</div>
//	<button class="hubframe-expand" data-iframe-id="w1"
//	        data-collapsed-height="600px" data-expanded-height="2400px">Lihat Semua</button>
//
// to a host bridge instance and answers height requests from the frames.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hazyhaar/hubframe/hostbridge"
	"github.com/hazyhaar/hubframe/internal/jsdom"
	"github.com/hazyhaar/hubframe/internal/jsdom/hostdom"
	"github.com/hazyhaar/hubframe/wire"
)

// Set at build time with -ldflags -X.
var (
	expandLabel   = ""
	collapseLabel = ""
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	b := hostbridge.New(hostdom.Window{},
		hostbridge.WithLabels(hostbridge.Labels{Expand: expandLabel, Collapse: collapseLabel}),
		hostbridge.WithLogger(logger),
	)

	// Script started after window load: every frame has loaded already and
	// its load event will not fire again.
	loaded := jsdom.DocumentComplete()

	for _, el := range hostdom.QueryAll(".hubframe-expand[data-iframe-id]") {
		ctl := hostdom.NewControl(el)
		id := ctl.Attr("data-iframe-id")
		iframe := hostdom.ByID(id)
		if !iframe.Truthy() {
			logger.Warn("hubbridge: no iframe for control", "id", id)
			continue
		}
		frame := hostdom.NewFrame(iframe, hostdom.Closest(iframe, ".hubframe-container"))
		cfg := hostbridge.InstanceConfig{
			ID:              id,
			CollapsedHeight: ctl.Attr("data-collapsed-height"),
			ExpandedHeight:  ctl.Attr("data-expanded-height"),
			Loaded:          loaded,
		}
		if err := b.Attach(cfg, frame, ctl); err != nil {
			logger.Warn("hubbridge: attach", "id", id, "error", err)
			continue
		}
		frame.OnLoad(func() { b.FrameLoaded(id) })
		ctl.OnClick(func() {
			if err := b.Toggle(id); err != nil {
				logger.Warn("hubbridge: toggle", "id", id, "error", err)
			}
		})
	}

	stopMessages := jsdom.OnMessage(func(m wire.Inbound) { b.HandleMessage(m.Data) })
	defer stopMessages()

	mutations, stopObserver := jsdom.Mutations()
	defer stopObserver()

	logger.Info("hubbridge: started", "instances", b.Len())
	b.Watch(context.Background(), mutations)
}
