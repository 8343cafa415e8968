package manifest

// Manifest describes one deployable version of the static shell.
//
//	version: v0.1.2
//	skipWaiting: true
//	assets:
//	  - /
//	  - /index.html
type Manifest struct {
	Version     string   `yaml:"version"`
	SkipWaiting *bool    `yaml:"skipWaiting,omitempty"`
	Assets      []string `yaml:"assets"`
}

// CoreAssets are cached when the manifest lists none.
var CoreAssets = []string{
	"/",
	"/index.html",
	"/share.html",
	"/styles.css",
	"/app.js",
	"/share.js",
	"/manifest.json",
	"/icon-192.png",
	"/icon-512.png",
}

// ShouldSkipWaiting reports whether a freshly installed version activates at
// once. It defaults to true.
func (m *Manifest) ShouldSkipWaiting() bool {
	return m.SkipWaiting == nil || *m.SkipWaiting
}
