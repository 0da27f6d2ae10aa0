// Package heightlog receives the out-of-band height reports that embedded
// widgets beacon to their host, stores them in SQLite and streams them live
// to dashboards over WebSocket.
//
// Mount it on a chi router:
//
//	svc, err := heightlog.New(heightlog.Config{DB: db, AllowedOrigins: allowed})
//	svc.RegisterHTTP(r)
package heightlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/hubframe/framesync"
	"github.com/hazyhaar/hubframe/idgen"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/shield"
)

// Paths of the read API.
const (
	ListPath   = "/api/height-reports"
	StreamPath = "/api/height-reports/stream"
)

// Config holds the settings of a Service.
type Config struct {
	DB             *sql.DB
	ReportPath     string          // default framesync.DefaultReportPath
	AllowedOrigins []origin.Origin // embedders allowed to report; empty accepts any
	RatePerSecond  float64         // per client, default 5
	Burst          int             // per client, default 10
	IDs            idgen.Generator // for reports without a usable id
	Now            func() time.Time
	Logger         *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.ReportPath == "" {
		c.ReportPath = framesync.DefaultReportPath
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.IDs == nil {
		c.IDs = idgen.Default
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service ingests, stores and serves height reports.
type Service struct {
	cfg     Config
	store   *Store
	hub     *Hub
	limiter *shield.RateLimiter
	allowed map[origin.Origin]bool
	logger  *slog.Logger
}

// New creates a Service and applies the schema.
func New(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("heightlog: DB is required")
	}
	cfg.applyDefaults()
	for _, stmt := range strings.Split(Schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := cfg.DB.Exec(stmt); err != nil {
			return nil, fmt.Errorf("heightlog: schema: %w", err)
		}
	}

	s := &Service{
		cfg:     cfg,
		store:   NewStore(cfg.DB),
		limiter: shield.NewRateLimiter(cfg.RatePerSecond, cfg.Burst),
		allowed: make(map[origin.Origin]bool),
		logger:  cfg.Logger,
	}
	for _, o := range cfg.AllowedOrigins {
		if o.IsKnown() {
			s.allowed[o] = true
		}
	}
	s.hub = NewHub(s.checkStreamOrigin, cfg.Logger)
	return s, nil
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// Hub returns the live stream hub.
func (s *Service) Hub() *Hub { return s.hub }

// RegisterHTTP mounts the report endpoint and the read API on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Options(s.cfg.ReportPath, s.handlePreflight)
	r.With(s.limiter.Middleware).Post(s.cfg.ReportPath, s.handleReport)
	r.Get(ListPath, s.handleList)
	r.Get(StreamPath, s.hub.ServeHTTP)
}

// RunRetention deletes reports older than keep every interval until ctx
// is done. It also forgets idle rate limit buckets.
func (s *Service) RunRetention(ctx context.Context, interval, keep time.Duration) error {
	s.limiter.StartGC(ctx.Done())
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			n, err := s.store.Purge(ctx, s.cfg.Now().Add(-keep))
			if err != nil {
				s.logger.Warn("heightlog: retention", "error", err)
				continue
			}
			metricPurged.Add(float64(n))
			if n > 0 {
				s.logger.Info("heightlog: purged reports", "count", n)
			}
		}
	}
}

// Close disconnects stream clients.
func (s *Service) Close() { s.hub.Close() }

// originAllowed reports whether a reporter origin may post. With no
// configured origins any well-formed origin is accepted.
func (s *Service) originAllowed(o origin.Origin) bool {
	if len(s.allowed) == 0 {
		return true
	}
	return s.allowed[o]
}

func (s *Service) checkStreamOrigin(r *http.Request) bool {
	raw := r.Header.Get("Origin")
	if raw == "" {
		return true
	}
	o, ok := origin.Parse(raw)
	if !ok {
		return false
	}
	if s.allowed[o] {
		return true
	}
	u, err := url.Parse(o.String())
	return err == nil && u.Host == r.Host
}
