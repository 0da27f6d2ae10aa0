// Package contentcache is a read-through cache in front of the WordPress
// REST API. The widget points its content client at it; responses are kept
// in SQLite, served fresh for TTL and served stale when the CMS is down.
package contentcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"
)

// Schema is the SQLite schema of the cache.
const Schema = `
CREATE TABLE IF NOT EXISTS content_cache (
    key         TEXT PRIMARY KEY,
    status      INTEGER NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'application/json',
    total       TEXT NOT NULL DEFAULT '',
    total_pages TEXT NOT NULL DEFAULT '',
    body        BLOB NOT NULL,
    fetched_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_cache_fetched ON content_cache(fetched_at);
`

// Routes proxied by RegisterHTTP.
var Routes = []string{
	"/wp-json/wp/v2/posts",
	"/wp-json/wp/v2/posts/{id}",
	"/wp-json/wp/v2/categories",
	"/wp-json/wp/v2/categories/{id}",
}

// Config holds the settings of a Cache.
type Config struct {
	DB       *sql.DB
	Upstream string        // WordPress base URL, e.g. https://shop.example.com
	TTL      time.Duration // fresh for, default 5m
	StaleTTL time.Duration // served on upstream failure for, default 24h
	MaxBytes int64         // upstream body cap, default 8 MiB
	Client   *http.Client
	Now      func() time.Time
	Logger   *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = 24 * time.Hour
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 8 << 20
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// entry is one cached upstream response.
type entry struct {
	status      int
	contentType string
	total       string
	totalPages  string
	body        []byte
	fetchedAt   time.Time
}

// Cache proxies and caches CMS reads.
type Cache struct {
	cfg      Config
	upstream string
	group    singleflight.Group
	logger   *slog.Logger
}

// New creates a Cache and applies the schema.
func New(cfg Config) (*Cache, error) {
	if cfg.DB == nil {
		return nil, errors.New("contentcache: DB is required")
	}
	if cfg.Upstream == "" {
		return nil, errors.New("contentcache: upstream is required")
	}
	cfg.applyDefaults()
	for _, stmt := range strings.Split(Schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := cfg.DB.Exec(stmt); err != nil {
			return nil, fmt.Errorf("contentcache: schema: %w", err)
		}
	}
	return &Cache{
		cfg:      cfg,
		upstream: strings.TrimRight(cfg.Upstream, "/"),
		logger:   cfg.Logger,
	}, nil
}

// RegisterHTTP mounts the proxied routes on r.
func (c *Cache) RegisterHTTP(r chi.Router) {
	for _, p := range Routes {
		r.Get(p, c.ServeHTTP)
	}
}

// key canonicalises a request: the path plus its sorted query.
func key(r *http.Request) string {
	q := r.URL.Query()
	if len(q) == 0 {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q.Encode()
}

// ServeHTTP answers from the cache or the upstream. Only 200 responses are
// cached; other statuses pass through so clients see pagination ends and
// not-found answers as the CMS sends them.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	k := key(r)
	now := c.cfg.Now()

	cached, err := c.load(ctx, k)
	if err != nil {
		c.logger.Warn("contentcache: load", "key", k, "error", err)
	}
	if cached != nil && now.Sub(cached.fetchedAt) < c.cfg.TTL {
		metricRequests.WithLabelValues("hit").Inc()
		write(w, cached, "HIT")
		return
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), k)
	})
	if err == nil {
		e := v.(*entry)
		if e.status == http.StatusOK {
			metricRequests.WithLabelValues("miss").Inc()
			write(w, e, "MISS")
			return
		}
		if e.status < 500 {
			metricRequests.WithLabelValues("bypass").Inc()
			write(w, e, "BYPASS")
			return
		}
		err = fmt.Errorf("upstream status %d", e.status)
	}

	if cached != nil && now.Sub(cached.fetchedAt) < c.cfg.StaleTTL {
		metricRequests.WithLabelValues("stale").Inc()
		c.logger.Warn("contentcache: serving stale", "key", k, "error", err)
		write(w, cached, "STALE")
		return
	}
	metricRequests.WithLabelValues("error").Inc()
	c.logger.Error("contentcache: upstream", "key", k, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	io.WriteString(w, `{"code":"upstream_unavailable","message":"content repository unavailable"}`)
}

func (c *Cache) fetch(ctx context.Context, k string) (*entry, error) {
	d := c.cfg.Client.Timeout
	if d <= 0 {
		d = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.upstream+k, nil)
	if err != nil {
		return nil, fmt.Errorf("contentcache: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contentcache: fetch: %w", err)
	}
	defer resp.Body.Close()
	metricUpstreamSeconds.Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("contentcache: read: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBytes {
		return nil, fmt.Errorf("contentcache: body exceeds %d bytes", c.cfg.MaxBytes)
	}

	e := &entry{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		total:       resp.Header.Get("X-WP-Total"),
		totalPages:  resp.Header.Get("X-WP-TotalPages"),
		body:        body,
		fetchedAt:   c.cfg.Now(),
	}
	if e.status == http.StatusOK {
		if err := c.store(ctx, k, e); err != nil {
			c.logger.Warn("contentcache: store", "key", k, "error", err)
		}
	}
	return e, nil
}

func (c *Cache) load(ctx context.Context, k string) (*entry, error) {
	var e entry
	var fetched int64
	err := c.cfg.DB.QueryRowContext(ctx,
		`SELECT status, content_type, total, total_pages, body, fetched_at FROM content_cache WHERE key = ?`, k,
	).Scan(&e.status, &e.contentType, &e.total, &e.totalPages, &e.body, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contentcache: load: %w", err)
	}
	e.fetchedAt = time.UnixMilli(fetched)
	return &e, nil
}

func (c *Cache) store(ctx context.Context, k string, e *entry) error {
	_, err := c.cfg.DB.ExecContext(ctx,
		`INSERT INTO content_cache (key, status, content_type, total, total_pages, body, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET status = excluded.status, content_type = excluded.content_type,
		   total = excluded.total, total_pages = excluded.total_pages, body = excluded.body,
		   fetched_at = excluded.fetched_at`,
		k, e.status, e.contentType, e.total, e.totalPages, e.body, e.fetchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("contentcache: store: %w", err)
	}
	return nil
}

// Purge drops entries fetched before cutoff. Those are past StaleTTL when
// cutoff is now minus StaleTTL.
func (c *Cache) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.cfg.DB.ExecContext(ctx, `DELETE FROM content_cache WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("contentcache: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PurgeExpired drops entries that can no longer be served, even stale.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	return c.Purge(ctx, c.cfg.Now().Add(-c.cfg.StaleTTL))
}

// Invalidate drops every entry, e.g. after content was published.
func (c *Cache) Invalidate(ctx context.Context) error {
	if _, err := c.cfg.DB.ExecContext(ctx, `DELETE FROM content_cache`); err != nil {
		return fmt.Errorf("contentcache: invalidate: %w", err)
	}
	return nil
}

func write(w http.ResponseWriter, e *entry, state string) {
	h := w.Header()
	ct := e.contentType
	if ct == "" {
		ct = "application/json"
	}
	h.Set("Content-Type", ct)
	if e.total != "" {
		h.Set("X-WP-Total", e.total)
	}
	if e.totalPages != "" {
		h.Set("X-WP-TotalPages", e.totalPages)
	}
	h.Set("X-Cache", state)
	w.WriteHeader(e.status)
	w.Write(e.body)
}
