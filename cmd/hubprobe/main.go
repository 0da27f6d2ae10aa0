//go:build !(js && wasm)

// Command hubprobe loads a widget page in headless Chrome and prints its
// document height collapsed and, with -expand, after clicking the expand
// control. Use it to pick the collapsed/expanded heights of the host bridge.
//
// Usage:
//
//	hubprobe -url https://widgets.example.com/?wpOrigin=https://shop.example.com
//	hubprobe -url ... -expand '.hubframe-toggle' -width 390
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/hubframe/height"
)

type options struct {
	url     string
	remote  string
	expand  string
	width   int
	settle  time.Duration
	timeout time.Duration
}

// measurement is one probe result.
type measurement struct {
	Height  int            `json:"height"`
	Metrics height.Metrics `json:"metrics"`
}

type result struct {
	URL       string       `json:"url"`
	Width     int          `json:"width"`
	Collapsed measurement  `json:"collapsed"`
	Expanded  *measurement `json:"expanded,omitempty"`
}

func main() {
	var o options
	flag.StringVar(&o.url, "url", "", "widget page URL")
	flag.StringVar(&o.remote, "remote", "", "DevTools WebSocket URL of a running Chrome (launch locally when empty)")
	flag.StringVar(&o.expand, "expand", "", "CSS selector of the expand control to click before the second measurement")
	flag.IntVar(&o.width, "width", 1280, "viewport width in CSS pixels")
	flag.DurationVar(&o.settle, "settle", 500*time.Millisecond, "wait after load and after clicking, for content to render")
	flag.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if o.url == "" {
		fmt.Fprintln(os.Stderr, "usage: hubprobe -url <widget page> [-expand <selector>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := run(ctx, logger, o)
	if err != nil {
		logger.Error("hubprobe: fatal", "error", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(res)
}

func run(ctx context.Context, logger *slog.Logger, o options) (*result, error) {
	wsURL := o.remote
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		defer l.Cleanup()
		wsURL = u
		logger.Debug("hubprobe: launched chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer b.Close()

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: o.width, Height: 800, DeviceScaleFactor: 1}); err != nil {
		return nil, fmt.Errorf("viewport: %w", err)
	}
	if err := page.Navigate(o.url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", o.url, err)
	}
	if err := page.WaitLoad(); err != nil {
		logger.Warn("hubprobe: wait load", "error", err)
	}

	provider := height.NewRodProvider(page)
	probe := height.NewProbe(provider)
	measure := func() (measurement, error) {
		sleep(ctx, o.settle)
		m, err := provider.Metrics(ctx)
		if err != nil {
			return measurement{}, err
		}
		h, err := probe.Measure(ctx)
		if err != nil {
			return measurement{}, err
		}
		return measurement{Height: h, Metrics: m}, nil
	}

	res := &result{URL: o.url, Width: o.width}
	if res.Collapsed, err = measure(); err != nil {
		return nil, err
	}
	logger.Info("hubprobe: collapsed", "height", res.Collapsed.Height)

	if o.expand == "" {
		return res, nil
	}
	el, err := page.Element(o.expand)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", o.expand, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("click %q: %w", o.expand, err)
	}
	exp, err := measure()
	if err != nil {
		return nil, err
	}
	res.Expanded = &exp
	logger.Info("hubprobe: expanded", "height", exp.Height)
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
