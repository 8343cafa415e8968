// Package share implements the "share to" capture flow: parse what another app
// shared, prefill a bookmark from the page's metadata and save it.
package share

import (
	"net/url"
	"regexp"
	"strings"
)

var urlInText = regexp.MustCompile(`https?://\S+`)

// Shared is what the sharing app handed over.
type Shared struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// ParseParams reads title, text and url. When url is empty the first URL found
// in text is used and removed from the text.
func ParseParams(q url.Values) Shared {
	s := Shared{
		Title: q.Get("title"),
		Text:  q.Get("text"),
		URL:   strings.TrimSpace(q.Get("url")),
	}
	if s.URL == "" && s.Text != "" {
		if m := urlInText.FindStringIndex(s.Text); m != nil {
			s.URL = s.Text[m[0]:m[1]]
			s.Text = strings.TrimSpace(s.Text[:m[0]] + s.Text[m[1]:])
		}
	}
	return s
}
