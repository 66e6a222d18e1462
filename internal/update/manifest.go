package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// manifestSizeLimit caps how much of a manifest response is read
const manifestSizeLimit = 1 << 20

// Manifest is a static latest.json document describing the newest build
type Manifest struct {
	Version   string                      `json:"version"`
	Notes     string                      `json:"notes"`
	PubDate   string                      `json:"pub_date"`
	Platforms map[string]ManifestPlatform `json:"platforms"`
}

// ManifestPlatform is the per-platform download entry of a Manifest
type ManifestPlatform struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256,omitempty"`
}

// ManifestChecker reads release metadata from a static JSON manifest
type ManifestChecker struct {
	url      string
	platform Platform
	client   *http.Client
}

// NewManifestChecker creates a checker for the manifest served at url
func NewManifestChecker(url string) *ManifestChecker {
	return &ManifestChecker{
		url:      url,
		platform: Detect(),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// LatestRelease fetches the manifest and resolves the entry for this platform.
// A manifest without an entry for the platform is still a valid release, the
// missing asset only fails at install time.
func (c *ManifestChecker) LatestRelease(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest server returned status %d", resp.StatusCode)
	}

	var manifest Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, manifestSizeLimit)).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	if manifest.Version == "" {
		return nil, fmt.Errorf("manifest has no version")
	}

	release := &Release{
		Version:      NormalizeVersion(manifest.Version),
		ReleaseDate:  manifest.PubDate,
		ReleaseNotes: manifest.Notes,
	}
	if entry, ok := manifest.Platforms[c.platform.ManifestKey()]; ok {
		release.AssetURL = entry.URL
		release.SHA256 = entry.SHA256
	}

	return release, nil
}
