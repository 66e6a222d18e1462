package update

import (
	"fmt"
	"runtime"
	"slices"
)

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// BinaryName returns the release asset name for this platform
// e.g., "selfup-darwin-arm64", "selfup-windows-amd64.exe"
func (p Platform) BinaryName() string {
	name := fmt.Sprintf("selfup-%s-%s", p.OS, p.Arch)
	if p.OS == "windows" {
		name += ".exe"
	}
	return name
}

// ManifestKey returns the key used for this platform in a latest.json
// manifest, e.g. "linux-x86_64" or "darwin-aarch64".
func (p Platform) ManifestKey() string {
	arch := p.Arch
	switch p.Arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}
	return p.OS + "-" + arch
}

// IsSupported returns true if this platform is supported
func (p Platform) IsSupported() bool {
	supportedPlatforms := map[string][]string{
		"darwin":  {"amd64", "arm64"},
		"linux":   {"amd64", "arm64"},
		"windows": {"amd64", "arm64"},
	}

	archs, ok := supportedPlatforms[p.OS]
	if !ok {
		return false
	}

	return slices.Contains(archs, p.Arch)
}
