package tabs

import (
	"net/url"
	"strings"
)

const (
	homeTitle     = "Home"
	loadingTitle  = "Loading..."
	fallbackTitle = "New Page"

	maxTitleLen = 30
	truncateAt  = 27
)

// deriveTitle maps a raw page title and URL to the tab's display title: the
// home page gets a fixed label, long titles are truncated with an ellipsis
// marker, and untitled pages fall back to their host name.
func deriveTitle(rawTitle, pageURL, homeURL string) string {
	if homeURL != "" && pageURL == homeURL {
		return homeTitle
	}

	if title := strings.TrimSpace(rawTitle); title != "" {
		runes := []rune(title)
		if len(runes) > maxTitleLen {
			return string(runes[:truncateAt]) + "..."
		}
		return title
	}

	if u, err := url.Parse(pageURL); err == nil {
		if host := strings.TrimPrefix(u.Hostname(), "www."); host != "" {
			return host
		}
	}
	return fallbackTitle
}
