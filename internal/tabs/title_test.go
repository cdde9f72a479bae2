package tabs

import "testing"

func TestDeriveTitle(t *testing.T) {
	const home = "https://home.example/"

	tests := []struct {
		name     string
		rawTitle string
		pageURL  string
		want     string
	}{
		{"home page label", "Anything", home, "Home"},
		{"plain title", "My Page", "https://a.com/", "My Page"},
		{"whitespace trimmed", "  My Page  ", "https://a.com/", "My Page"},
		{"long title truncated", "This title is much longer than thirty characters", "https://a.com/", "This title is much longer t..."},
		{"exactly thirty characters kept", "123456789012345678901234567890", "https://a.com/", "123456789012345678901234567890"},
		{"empty falls back to host", "", "https://www.news.example/story", "news.example"},
		{"empty url and title", "", "", "New Page"},
		{"unparsable url", "", "http://%zz", "New Page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveTitle(tt.rawTitle, tt.pageURL, home); got != tt.want {
				t.Fatalf("deriveTitle(%q, %q) = %q; want %q", tt.rawTitle, tt.pageURL, got, tt.want)
			}
		})
	}
}
