// Package backup exports and restores a user's folders and bookmarks as a
// single JSON document.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// Version is written into every exported document.
const Version = "2.0"

// Document is the backup file.
type Document struct {
	Folders   []Folder `json:"folders"`
	Archives  []Folder `json:"archives"`
	Version   string   `json:"version"`
	Timestamp string   `json:"timestamp"`
}

// Folder is a folder with its bookmarks inlined. Timestamps are RFC 3339 strings
// so that lenient parsing on import can fall back instead of failing.
type Folder struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt string     `json:"createdAt"`
	Bookmarks []Bookmark `json:"bookmarks"`
}

type Bookmark struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	CreatedAt   string `json:"createdAt"`
	ArchivedAt  string `json:"archivedAt,omitempty"`
}

// FileName is the download name of a backup taken at t.
func FileName(t time.Time) string {
	return "bookmark-backup-" + t.UTC().Format("2006-01-02") + ".json"
}

// Parse checks the document shape and decodes it. Any failure wraps
// domain.ErrMalformedBackup.
func Parse(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", domain.ErrMalformedBackup)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%w: top level must be an object", domain.ErrMalformedBackup)
	}
	if !gjson.GetBytes(data, "folders").IsArray() {
		return nil, fmt.Errorf("%w: missing folders array", domain.ErrMalformedBackup)
	}
	if archives := gjson.GetBytes(data, "archives"); archives.Exists() && archives.Type != gjson.Null && !archives.IsArray() {
		return nil, fmt.Errorf("%w: archives must be an array", domain.ErrMalformedBackup)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBackup, err)
	}
	return &doc, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 with or without fractional seconds and returns
// fallback for anything else.
func parseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
