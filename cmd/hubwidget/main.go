//go:build js && wasm

// Command hubwidget is the embedded article widget, compiled to wasm:
//
//	GOOS=js GOARCH=wasm go build -ldflags "-X main.fallbackOrigin=https://shop.example.com" -o web/widget.wasm ./cmd/hubwidget
//
// The page served in the iframe loads wasm_exec.js and widget.wasm and
// provides an element with id "hubframe".
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hazyhaar/hubframe/content"
	"github.com/hazyhaar/hubframe/framesync"
	"github.com/hazyhaar/hubframe/height"
	"github.com/hazyhaar/hubframe/internal/jsdom"
	"github.com/hazyhaar/hubframe/internal/jsdom/widgetdom"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/uiloop"
	"github.com/hazyhaar/hubframe/widget"
)

// Set at build time with -ldflags -X.
var (
	fallbackOrigin = ""      // trusted origin when neither query nor referrer name one
	contentBase    = ""      // content repository root; the widget's own origin when empty
	allowWildcard  = "false" // "true" broadcasts height reports when the origin is unknown
	logLevel       = "info"
)

func main() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	href, referrer := widgetdom.PageURL()
	trusted := origin.FromPageURL(href, referrer, fallbackOrigin)
	if !trusted.IsKnown() {
		logger.Warn("hubwidget: trusted origin unknown, height reports stay local")
	}

	base := contentBase
	if base == "" {
		self, _ := origin.Parse(href)
		base = self.String()
	}

	loop := uiloop.New(uiloop.WithLogger(logger))
	beacon := framesync.NewBeacon(trusted, framesync.DefaultReportPath, framesync.WithBeaconLogger(logger))
	ch := framesync.NewChannel(framesync.Config{
		Origin:        trusted,
		AllowWildcard: allowWildcard == "true",
	}, widgetdom.Parent{}, framesync.WithBeacon(beacon), framesync.WithLogger(logger))

	var presenter *widgetdom.Presenter
	w := widget.New(widget.Config{}, widget.Deps{
		Loop:      loop,
		Channel:   ch,
		Probe:     height.NewProbe(widgetdom.Metrics{}),
		Presenter: widget.PresenterFunc(func(v widget.View) { presenter.Render(v) }),
		Source:    content.New(content.Config{BaseURL: base}, content.WithLogger(logger)),
		Location:  widgetdom.Location{},
		Logger:    logger,
	})
	presenter = widgetdom.NewPresenter("hubframe", w)
	defer presenter.Close()

	stop := jsdom.OnMessage(w.Deliver)
	defer stop()

	ctx := context.Background()
	w.Start(ctx)
	defer w.Close()

	logger.Info("hubwidget: started", "origin", trusted.String(), "content", base)
	if err := loop.Run(ctx); err != nil {
		logger.Error("hubwidget: loop", "error", err)
	}
}
