package domain

import (
	"fmt"
	"regexp"
)

// EmbedKind identifies the provider of a previewable link.
type EmbedKind string

const (
	EmbedYouTube   EmbedKind = "youtube"
	EmbedInstagram EmbedKind = "instagram"
	EmbedImgur     EmbedKind = "imgur"
)

// Embed describes how a link can be previewed inline.
type Embed struct {
	Kind EmbedKind `json:"kind"`

	// Src is the iframe source (youtube, instagram) or image source (imgur).
	Src string `json:"src"`

	// Fallback is an alternative image source tried when Src fails to load.
	Fallback string `json:"fallback,omitempty"`

	// Link points back to the original page when the embed is an image.
	Link string `json:"link,omitempty"`
}

var (
	youtubeWatchRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]+)`)
	youtubeShortRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be/([a-zA-Z0-9_-]+)`)
	instagramRe    = regexp.MustCompile(`(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel)/([a-zA-Z0-9_-]+)`)
	imgurRe        = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?imgur\.com/(?:a/|gallery/)?([a-zA-Z0-9]{5,})`)
)

// EmbedFor returns the inline preview for url, or nil when the provider is not supported.
// Matching is pattern based: youtube first, then instagram, then imgur.
func EmbedFor(url string) *Embed {
	if id := firstGroup(url, youtubeWatchRe, youtubeShortRe); id != "" {
		return &Embed{
			Kind: EmbedYouTube,
			Src:  "https://www.youtube.com/embed/" + id,
		}
	}
	if id := firstGroup(url, instagramRe); id != "" {
		return &Embed{
			Kind: EmbedInstagram,
			Src:  fmt.Sprintf("https://www.instagram.com/p/%s/embed", id),
		}
	}
	if id := firstGroup(url, imgurRe); id != "" {
		return &Embed{
			Kind:     EmbedImgur,
			Src:      fmt.Sprintf("https://i.imgur.com/%s.jpg", id),
			Fallback: fmt.Sprintf("https://i.imgur.com/%s.png", id),
			Link:     url,
		}
	}
	return nil
}

func firstGroup(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
