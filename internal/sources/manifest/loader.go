package manifest

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Z0-9_]+)\s*\}\}`)

// Loader reads the asset manifest (assets.yaml).
type Loader struct {
	filePath string
}

// NewLoader creates a new manifest loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads, expands and validates the manifest.
func (l *Loader) Load() (*Manifest, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest. {{NAME}} placeholders are replaced with the value
// of the environment variable NAME, so the version can be injected at deploy
// time.
func Parse(data []byte) (*Manifest, error) {
	data = expandTemplateVariables(data)

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse asset manifest: %w", err)
	}

	m.Version = strings.TrimSpace(m.Version)
	if m.Version == "" {
		return nil, errors.New("asset manifest: version is required")
	}
	if len(m.Assets) == 0 {
		m.Assets = append([]string(nil), CoreAssets...)
	}

	seen := make(map[string]bool, len(m.Assets))
	assets := m.Assets[:0]
	for _, a := range m.Assets {
		a = strings.TrimSpace(a)
		if !strings.HasPrefix(a, "/") || strings.HasPrefix(a, "//") {
			return nil, fmt.Errorf("asset manifest: %q must be an absolute path", a)
		}
		if !seen[a] {
			seen[a] = true
			assets = append(assets, a)
		}
	}
	m.Assets = assets
	return &m, nil
}

func expandTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAllFunc(data, func(match []byte) []byte {
		name := templateVar.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}
