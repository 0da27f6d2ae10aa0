package framesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/hubframe/idgen"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/wire"
)

// DefaultReportPath is where the beacon posts on the trusted origin.
const DefaultReportPath = "/wp-json/hubframe/v1/height-report"

// BeaconPayload is the out-of-band observability body. TS is epoch
// milliseconds as a decimal string. ID correlates a beacon with logs; the
// in-page message carries none.
type BeaconPayload struct {
	ID         string `json:"id,omitempty"`
	Height     int    `json:"height"`
	IsExpanded bool   `json:"isExpanded"`
	TS         string `json:"ts"`
}

// Beacon POSTs height reports to {origin}{path}. Delivery is fire-and-forget:
// one attempt, no retry, failures logged.
type Beacon struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	newID    idgen.Generator
	now      func() time.Time
	logger   *slog.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// BeaconOption configures a Beacon.
type BeaconOption func(*Beacon)

// WithBeaconClient sets the HTTP client.
func WithBeaconClient(c *http.Client) BeaconOption {
	return func(b *Beacon) { b.client = c }
}

// WithBeaconLimit caps the report rate. Reports over the limit are dropped.
// Default: 10 per second, burst 20.
func WithBeaconLimit(perSecond float64, burst int) BeaconOption {
	return func(b *Beacon) { b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithBeaconIDs sets the report id generator.
func WithBeaconIDs(gen idgen.Generator) BeaconOption {
	return func(b *Beacon) { b.newID = gen }
}

// WithBeaconClock sets the clock used for ts.
func WithBeaconClock(now func() time.Time) BeaconOption {
	return func(b *Beacon) { b.now = now }
}

// WithBeaconLogger sets the logger.
func WithBeaconLogger(l *slog.Logger) BeaconOption {
	return func(b *Beacon) { b.logger = l }
}

// NewBeacon creates a beacon for o. When o is unknown the beacon is inert
// and every Send is logged and skipped.
func NewBeacon(o origin.Origin, path string, opts ...BeaconOption) *Beacon {
	if path == "" {
		path = DefaultReportPath
	}
	endpoint, _ := o.Endpoint(path)
	b := &Beacon{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(10, 20),
		newID:    idgen.UUIDv7(),
		now:      time.Now,
		logger:   slog.Default(),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Endpoint returns the target URL, empty when the origin is unknown.
func (b *Beacon) Endpoint() string { return b.endpoint }

// Send posts the report on its own goroutine and returns immediately.
func (b *Beacon) Send(report wire.HeightReport) {
	if b.endpoint == "" {
		b.logger.Debug("framesync: beacon skipped, trusted origin unknown")
		return
	}
	if !b.limiter.Allow() {
		b.logger.Debug("framesync: beacon rate limited", "height", report.Height)
		return
	}
	payload := BeaconPayload{
		ID:         b.newID(),
		Height:     report.Height,
		IsExpanded: report.IsExpanded,
		TS:         strconv.FormatInt(b.now().UnixMilli(), 10),
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.post(ctx, payload); err != nil {
			b.logger.Warn("framesync: beacon failed", "error", err, "id", payload.ID)
		}
	}()
}

// Wait blocks until in-flight sends have finished.
func (b *Beacon) Wait() { b.wg.Wait() }

func (b *Beacon) post(ctx context.Context, payload BeaconPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("beacon: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("beacon: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("beacon: post: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("beacon: status %d", resp.StatusCode)
	}
	return nil
}
