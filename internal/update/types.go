package update

import "context"

// UpdateInfo describes an available update. It is never modified once returned.
type UpdateInfo struct {
	Version      string `json:"version" yaml:"version"`
	ReleaseDate  string `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	ReleaseNotes string `json:"release_notes,omitempty" yaml:"release_notes,omitempty"` // Empty when the release carries no notes
}

// Release is the latest published build as reported by a Checker
type Release struct {
	Version      string
	ReleaseDate  string
	ReleaseNotes string
	ReleaseURL   string // URL to the release page
	AssetURL     string // Direct download URL for the binary
	ChecksumURL  string // URL to a checksums.txt file, optional
	SHA256       string // Inline checksum, optional
}

// Info returns the user-facing descriptor of the release.
func (r *Release) Info() *UpdateInfo {
	return &UpdateInfo{
		Version:      r.Version,
		ReleaseDate:  r.ReleaseDate,
		ReleaseNotes: r.ReleaseNotes,
	}
}

// Platform describes the current system platform
type Platform struct {
	OS   string // Operating system (darwin, linux, windows)
	Arch string // Architecture (amd64, arm64)
}

// Checker fetches the latest published release
type Checker interface {
	LatestRelease(ctx context.Context) (*Release, error)
}

// Downloader downloads and verifies binaries
type Downloader interface {
	Download(ctx context.Context, url, dst string, events chan<- DownloadEvent) error
	VerifyChecksum(ctx context.Context, file, checksumURL string) error
	VerifySHA256(file, sum string) error
}

// Replacer safely replaces the binary with rollback support
type Replacer interface {
	Replace(newBinary string) error
	Rollback() error
}
