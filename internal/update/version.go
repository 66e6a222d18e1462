package update

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ParseVersion parses a semantic version string
// Supports formats like "0.8.2", "v0.8.2", "0.9.0-rc.1"
func ParseVersion(s string) (*goversion.Version, error) {
	v, err := goversion.NewSemver(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version format: %s", s)
	}
	return v, nil
}

// IsNewer reports whether latest is strictly greater than current
func IsNewer(current, latest string) (bool, error) {
	cur, err := ParseVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid current version: %w", err)
	}

	lat, err := ParseVersion(latest)
	if err != nil {
		return false, fmt.Errorf("invalid latest version: %w", err)
	}

	return lat.GreaterThan(cur), nil
}

// NormalizeVersion removes the 'v' prefix if present
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(s, "v")
}
