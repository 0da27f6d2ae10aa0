package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	postsPath      = "/wp-json/wp/v2/posts"
	categoriesPath = "/wp-json/wp/v2/categories"

	// MaxPerPage is the WordPress REST per_page ceiling.
	MaxPerPage = 100
	// DefaultPerPage matches the listing size of a single page request.
	DefaultPerPage = 12
	// DefaultMaxPages bounds AllPosts against a source that never returns a
	// short page.
	DefaultMaxPages = 50
)

// ErrNotFound is returned for a missing post or category.
var ErrNotFound = errors.New("content: not found")

// Config configures a Client.
type Config struct {
	// BaseURL is the site root, e.g. https://blog.example.com. It may also
	// point at a caching proxy exposing the same /wp-json paths.
	BaseURL   string
	Timeout   time.Duration // default 10s
	MaxBytes  int64         // per response, default 10MB
	MaxPages  int           // AllPosts cap, default DefaultMaxPages
	UserAgent string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.UserAgent == "" {
		c.UserAgent = "hubframe/1.0"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Client reads posts and categories.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client.
func New(cfg Config, opts ...Option) *Client {
	cfg.defaults()
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Posts fetches one page of posts. PerPage defaults to DefaultPerPage and is
// clamped to MaxPerPage.
func (c *Client) Posts(ctx context.Context, q Query) ([]Article, error) {
	items, _, err := c.postsPage(ctx, q)
	return items, err
}

// AllPosts follows pages until a short page, the last page announced by
// X-WP-TotalPages, or the page cap. per_page is min(MaxPerPage, q.PerPage),
// MaxPerPage when unset.
func (c *Client) AllPosts(ctx context.Context, q Query) (PageResult, error) {
	perPage := q.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	q.PerPage = perPage

	var res PageResult
	for i := 0; i < c.cfg.MaxPages; i++ {
		q.Page = i + 1
		items, totalPages, err := c.postsPage(ctx, q)
		if err != nil {
			// WordPress answers 400 for a page past the end when the total
			// is an exact multiple of per_page.
			var se *StatusError
			if i > 0 && errors.As(err, &se) && se.Code == http.StatusBadRequest {
				return res, nil
			}
			return res, err
		}
		res.Items = append(res.Items, items...)
		res.Pages = q.Page
		if len(items) < perPage || (totalPages > 0 && q.Page >= totalPages) {
			return res, nil
		}
	}
	res.Truncated = true
	c.logger.Warn("content: page cap reached, listing may be incomplete",
		"max_pages", c.cfg.MaxPages, "items", len(res.Items))
	return res, nil
}

// Articles returns up to limit posts, or every post when limit <= 0.
func (c *Client) Articles(ctx context.Context, q Query, limit int) ([]Article, error) {
	if limit > 0 {
		q.PerPage = limit
		q.Page = 0
		return c.Posts(ctx, q)
	}
	res, err := c.AllPosts(ctx, q)
	return res.Items, err
}

// Post fetches a single post.
func (c *Client) Post(ctx context.Context, id int) (Article, error) {
	var p wpPost
	v := url.Values{"_embed": {"1"}}
	if _, err := c.getJSON(ctx, postsPath+"/"+strconv.Itoa(id), v, &p); err != nil {
		return Article{}, err
	}
	return normalize(p), nil
}

// Categories lists up to MaxPerPage categories. Empty categories are
// omitted when hideEmpty is set.
func (c *Client) Categories(ctx context.Context, hideEmpty bool) ([]Category, error) {
	v := url.Values{
		"per_page":   {strconv.Itoa(MaxPerPage)},
		"hide_empty": {strconv.FormatBool(hideEmpty)},
	}
	var cats []Category
	if _, err := c.getJSON(ctx, categoriesPath, v, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Category fetches one category.
func (c *Client) Category(ctx context.Context, id int) (Category, error) {
	var cat Category
	if _, err := c.getJSON(ctx, categoriesPath+"/"+strconv.Itoa(id), nil, &cat); err != nil {
		return Category{}, err
	}
	return cat, nil
}

func (c *Client) postsPage(ctx context.Context, q Query) ([]Article, int, error) {
	v := PostsValues(q)
	var raw []wpPost
	hdr, err := c.getJSON(ctx, postsPath, v, &raw)
	if err != nil {
		return nil, 0, err
	}
	items := make([]Article, 0, len(raw))
	for _, p := range raw {
		items = append(items, normalize(p))
	}
	total, _ := strconv.Atoi(hdr.Get("X-WP-TotalPages"))
	return items, total, nil
}

// PostsValues encodes q as WordPress query parameters with _embed set.
func PostsValues(q Query) url.Values {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	v := url.Values{
		"_embed":   {"true"},
		"per_page": {strconv.Itoa(perPage)},
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID > 0 {
		v.Set("categories", strconv.Itoa(q.CategoryID))
	}
	return v
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("content: %s: http %d", e.URL, e.Code)
}

func (c *Client) getJSON(ctx context.Context, path string, v url.Values, dst any) (http.Header, error) {
	u := c.cfg.BaseURL + path
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("content: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	c.logger.Debug("content: request", "method", req.Method, "url", u)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("content: request failed", "url", u, "error", err)
		return nil, fmt.Errorf("content: http: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("content: response", "status", resp.StatusCode, "url", u, "elapsed", time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return resp.Header, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, &StatusError{Code: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes))
	if err != nil {
		return resp.Header, fmt.Errorf("content: read body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return resp.Header, fmt.Errorf("content: decode %s: %w", path, err)
	}
	return resp.Header, nil
}
