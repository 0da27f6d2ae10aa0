// Package content is a read-only client for the WordPress REST API that
// backs the widget: paginated post listings filtered by search and
// category, and the category list used to build tabs.
package content

import "time"

// Article is a normalised post, ready to render as a card.
type Article struct {
	ID         int       `json:"id"`
	Link       string    `json:"link"`
	Date       time.Time `json:"date"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	Image      string    `json:"image,omitempty"`
	Categories []string  `json:"categories,omitempty"`
}

// Category is a post category. Slug doubles as the widget tab id.
type Category struct {
	ID          int    `json:"id"`
	Count       int    `json:"count"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Parent      int    `json:"parent"`
}

// Query filters a post listing. Zero values mean no filter.
type Query struct {
	Search     string
	CategoryID int
	PerPage    int
	Page       int
}

// PageResult is the outcome of a paginated fetch.
type PageResult struct {
	Items []Article
	Pages int
	// Truncated is set when the page cap stopped the loop before the
	// source reported its last page.
	Truncated bool
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID         int       `json:"id"`
	Link       string    `json:"link"`
	Date       string    `json:"date"`
	Title      rendered  `json:"title"`
	Excerpt    *rendered `json:"excerpt"`
	Content    *rendered `json:"content"`
	Categories []int     `json:"categories"`
	Embedded   *struct {
		FeaturedMedia []struct {
			SourceURL string `json:"source_url"`
		} `json:"wp:featuredmedia"`
		Terms [][]struct {
			Taxonomy string `json:"taxonomy"`
			Name     string `json:"name"`
		} `json:"wp:term"`
	} `json:"_embedded"`
}
