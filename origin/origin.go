// Package origin resolves the trusted host origin of an embedded widget.
//
// The origin is the scheme://host[:port] of the page believed to host the
// widget iframe. It scopes every outbound cross-document message and the
// out-of-band height beacon. It is resolved once per page load and never
// changes afterwards.
package origin

import (
	"net/url"
	"strings"
)

// Origin is a scheme+host+port tuple such as "https://shop.example.com".
type Origin string

// Unknown is the sentinel for an unresolved origin.
const Unknown Origin = ""

// Wildcard is the postMessage target that matches any receiver.
const Wildcard = "*"

// Query parameters checked in order before the referrer.
var queryParams = []string{"wpOrigin", "parent"}

// Sources holds the inputs for resolution.
type Sources struct {
	Query    url.Values // widget page query parameters
	Referrer string     // document.referrer
	Fallback string     // build-time configured default
}

// IsKnown reports whether o was resolved.
func (o Origin) IsKnown() bool { return o != Unknown }

func (o Origin) String() string { return string(o) }

// Resolve returns the first origin found among: the wpOrigin query parameter,
// the parent query parameter, the referrer, the fallback. Any candidate that
// does not parse as an http(s) URL with a host is skipped. Returns Unknown
// when none qualifies.
func Resolve(src Sources) Origin {
	for _, name := range queryParams {
		if o, ok := Parse(src.Query.Get(name)); ok {
			return o
		}
	}
	if o, ok := Parse(src.Referrer); ok {
		return o
	}
	if o, ok := Parse(src.Fallback); ok {
		return o
	}
	return Unknown
}

// FromPageURL resolves the origin for a widget loaded at pageURL. A pageURL
// that fails to parse contributes no query parameters.
func FromPageURL(pageURL, referrer, fallback string) Origin {
	var q url.Values
	if u, err := url.Parse(pageURL); err == nil {
		q = u.Query()
	}
	return Resolve(Sources{Query: q, Referrer: referrer, Fallback: fallback})
}

// Parse reduces raw to its origin. ok is false for empty input, parse
// failures, non-http(s) schemes and missing hosts.
func Parse(raw string) (Origin, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Unknown, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Unknown, false
	}
	if u.Hostname() == "" {
		return Unknown, false
	}
	host := strings.ToLower(u.Host)
	// Default ports are not part of the serialised origin.
	if (scheme == "http" && u.Port() == "80") || (scheme == "https" && u.Port() == "443") {
		host = strings.ToLower(u.Hostname())
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}
	return Origin(scheme + "://" + host), true
}

// Matches reports whether sender, as reported by a message event, equals o.
func (o Origin) Matches(sender string) bool {
	if !o.IsKnown() {
		return false
	}
	s, ok := Parse(sender)
	return ok && s == o
}

// Target returns the postMessage target for o. When o is unknown the result
// is Wildcard if allowWildcard is set, otherwise ok is false.
func (o Origin) Target(allowWildcard bool) (target string, ok bool) {
	if o.IsKnown() {
		return string(o), true
	}
	if allowWildcard {
		return Wildcard, true
	}
	return "", false
}

// Endpoint joins o with an absolute path, e.g. the height report path.
func (o Origin) Endpoint(path string) (string, bool) {
	if !o.IsKnown() {
		return "", false
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return string(o) + path, true
}
