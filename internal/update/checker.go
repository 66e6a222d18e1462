package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// GitHubChecker checks for updates via GitHub API
type GitHubChecker struct {
	githubToken string // Optional, for rate limiting
	owner       string // Repository owner
	repo        string // Repository name
	platform    Platform
	client      *http.Client
	baseURL     string // Base URL for GitHub API (for testing)
}

// GitHubRelease represents a GitHub release response
type GitHubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// NewGitHubChecker creates a new GitHub checker
func NewGitHubChecker(owner, repo string) *GitHubChecker {
	return &GitHubChecker{
		owner:    owner,
		repo:     repo,
		platform: Detect(),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://api.github.com",
	}
}

// WithToken sets an optional GitHub token for authentication
func (c *GitHubChecker) WithToken(token string) *GitHubChecker {
	c.githubToken = token
	return c
}

// WithBaseURL points the checker at a different API root (GitHub Enterprise, tests)
func (c *GitHubChecker) WithBaseURL(baseURL string) *GitHubChecker {
	c.baseURL = baseURL
	return c
}

// LatestRelease returns the latest published release for the repository
func (c *GitHubChecker) LatestRelease(ctx context.Context) (*Release, error) {
	release, err := c.getLatestRelease(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}

	assetURL, checksumURL := c.findAssetURLs(release, c.platform)
	log.Debugf("latest release %s (asset %q)", release.TagName, assetURL)

	var releaseDate string
	if !release.PublishedAt.IsZero() {
		releaseDate = release.PublishedAt.UTC().Format(time.RFC3339)
	}

	return &Release{
		Version:      NormalizeVersion(release.TagName),
		ReleaseDate:  releaseDate,
		ReleaseNotes: release.Body,
		ReleaseURL:   release.HTMLURL,
		AssetURL:     assetURL,
		ChecksumURL:  checksumURL,
	}, nil
}

// getLatestRelease fetches the latest release from GitHub API
func (c *GitHubChecker) getLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.githubToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.githubToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &release, nil
}

// findAssetURLs finds the binary and checksum URLs for the given platform
func (c *GitHubChecker) findAssetURLs(release *GitHubRelease, platform Platform) (string, string) {
	binaryName := platform.BinaryName()
	var assetURL, checksumURL string

	for _, asset := range release.Assets {
		if asset.Name == binaryName {
			assetURL = asset.BrowserDownloadURL
		}
		if asset.Name == "checksums.txt" {
			checksumURL = asset.BrowserDownloadURL
		}
	}

	return assetURL, checksumURL
}
