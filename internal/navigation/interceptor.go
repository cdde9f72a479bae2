// Package navigation classifies outbound requests before they reach the
// rendering engine: search-query URLs for a non-selected engine are
// rewritten to the selected engine, block-listed domains are refused, and
// everything else passes through untouched.
package navigation

import (
	"net/url"
	"strings"
)

type Action int

const (
	Allow Action = iota
	Redirect
	Block
)

// Decision is the interceptor verdict for one outbound request. URL is set
// only for Redirect.
type Decision struct {
	Action Action
	URL    string
}

// DefaultEngine is used whenever an unknown engine name is supplied.
const DefaultEngine = "Google"

// queryTemplates maps each supported engine to its query-URL prefix. The
// engine set is closed; anything else falls back to Google.
var queryTemplates = map[string]string{
	"Google":     "https://www.google.com/search?q=",
	"Bing":       "https://www.bing.com/search?q=",
	"DuckDuckGo": "https://duckduckgo.com/?q=",
	"Brave":      "https://search.brave.com/search?q=",
	"Ecosia":     "https://www.ecosia.org/search?q=",
}

// engineHosts maps a query-URL host to its engine name for classification.
var engineHosts = map[string]string{
	"google.com":       "Google",
	"bing.com":         "Bing",
	"duckduckgo.com":   "DuckDuckGo",
	"search.brave.com": "Brave",
	"ecosia.org":       "Ecosia",
}

// Engines returns the closed engine set in display order.
func Engines() []string {
	return []string{"Google", "Bing", "DuckDuckGo", "Brave", "Ecosia"}
}

// KnownEngine reports whether name is one of the supported engines.
func KnownEngine(name string) bool {
	_, ok := queryTemplates[name]
	return ok
}

// Interceptor holds the block list. Classification itself is stateless.
type Interceptor struct {
	blocked []string
}

func NewInterceptor(blockedDomains []string) *Interceptor {
	blocked := make([]string, 0, len(blockedDomains))
	for _, d := range blockedDomains {
		if d = strings.TrimSpace(d); d != "" {
			blocked = append(blocked, d)
		}
	}
	return &Interceptor{blocked: blocked}
}

// Decide classifies one outbound request URL against the currently selected
// engine. A query URL already belonging to the selected engine is allowed,
// so a redirect target is never re-rewritten.
func (i *Interceptor) Decide(rawURL, selectedEngine string) Decision {
	if engine, query, ok := classifyQueryURL(rawURL); ok {
		selected := selectedEngine
		if !KnownEngine(selected) {
			selected = DefaultEngine
		}
		if engine == selected {
			return Decision{Action: Allow}
		}
		return Decision{Action: Redirect, URL: SearchURL(query, selected)}
	}

	if i.isBlocked(rawURL) {
		return Decision{Action: Block}
	}
	return Decision{Action: Allow}
}

func (i *Interceptor) isBlocked(rawURL string) bool {
	for _, domain := range i.blocked {
		if strings.Contains(rawURL, domain) {
			return true
		}
	}
	return false
}

// classifyQueryURL reports which engine a URL is a search query for, and the
// decoded query term.
func classifyQueryURL(rawURL string) (engine, query string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	engine, ok = engineHosts[host]
	if !ok {
		return "", "", false
	}

	// Each engine serves queries from one path: "/" for DuckDuckGo,
	// "/search" for the rest.
	path := strings.TrimRight(u.Path, "/")
	if engine == "DuckDuckGo" {
		if path != "" {
			return "", "", false
		}
	} else if path != "/search" {
		return "", "", false
	}

	query = u.Query().Get("q")
	if query == "" {
		return "", "", false
	}
	return engine, query, true
}

// SearchURL builds the query URL for the given engine. Unknown engines fall
// back to Google.
func SearchURL(query, engine string) string {
	tmpl, ok := queryTemplates[engine]
	if !ok {
		tmpl = queryTemplates[DefaultEngine]
	}
	return tmpl + url.QueryEscape(query)
}

// LuckySearchURL builds an "I'm Feeling Lucky" query. Only Google supports
// it; for other engines it is a plain search.
func LuckySearchURL(query, engine string) string {
	if !KnownEngine(engine) {
		engine = DefaultEngine
	}
	if engine != "Google" {
		return SearchURL(query, engine)
	}
	return SearchURL(query, engine) + "&btnI=1"
}

// LooksLikeSearch reports whether URL-bar input should be treated as a
// search query rather than an address: no scheme, and either no dot or a
// question-style prefix.
func LooksLikeSearch(text string) bool {
	if strings.Contains(text, "://") {
		return false
	}
	for _, prefix := range []string{"what is", "how to", "why"} {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return !strings.Contains(text, ".")
}
