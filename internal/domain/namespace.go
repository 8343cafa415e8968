package domain

import "fmt"

// Namespace is one of the two per-user bookmark collections.
type Namespace string

const (
	// Active holds the regular folders ("bookmark_secret").
	Active Namespace = "active"
	// Archived holds archived folders ("bookmark_archive").
	Archived Namespace = "archived"
)

// Collection returns the document collection name backing the namespace.
func (n Namespace) Collection() string {
	if n == Archived {
		return "bookmark_archive"
	}
	return "bookmark_secret"
}

// Other returns the opposite namespace.
func (n Namespace) Other() Namespace {
	if n == Archived {
		return Active
	}
	return Archived
}

func (n Namespace) Valid() bool {
	return n == Active || n == Archived
}

// ParseNamespace accepts both the short names and the collection names.
func ParseNamespace(s string) (Namespace, error) {
	switch s {
	case "active", "bookmark_secret":
		return Active, nil
	case "archived", "bookmark_archive":
		return Archived, nil
	default:
		return "", fmt.Errorf("%w: unknown namespace %q", ErrInvalidInput, s)
	}
}
