package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/selfup/internal/backup"
)

// Archiver keeps copies of replaced binaries
type Archiver interface {
	Create(binaryPath, version string) (*backup.Backup, error)
	Prune(keep int) (*backup.PruneResult, error)
}

// Updater checks a Checker for newer releases and installs them over the
// running binary.
type Updater struct {
	checker     Checker
	downloader  Downloader
	newReplacer func(path string) Replacer
	archiver    Archiver
	keepBackups int
	installPath string
	platform    Platform

	mu             sync.Mutex
	currentVersion string
	pending        *Release
}

// Option configures an Updater
type Option func(*Updater)

// WithDownloader replaces the default HTTP downloader
func WithDownloader(d Downloader) Option {
	return func(u *Updater) { u.downloader = d }
}

// WithInstallPath sets the binary to replace. Defaults to the running executable.
func WithInstallPath(path string) Option {
	return func(u *Updater) { u.installPath = path }
}

// WithArchiver keeps a copy of every replaced binary, pruned to keep entries
func WithArchiver(a Archiver, keep int) Option {
	return func(u *Updater) {
		u.archiver = a
		u.keepBackups = keep
	}
}

// WithPlatform overrides the detected platform
func WithPlatform(p Platform) Option {
	return func(u *Updater) { u.platform = p }
}

// WithReplacer overrides how the installed binary is swapped
func WithReplacer(fn func(path string) Replacer) Option {
	return func(u *Updater) { u.newReplacer = fn }
}

// NewUpdater creates an Updater for the given running version
func NewUpdater(currentVersion string, checker Checker, opts ...Option) *Updater {
	u := &Updater{
		checker:        checker,
		downloader:     NewHTTPDownloader().WithUserAgent("selfup/" + NormalizeVersion(currentVersion)),
		newReplacer:    func(path string) Replacer { return NewBinaryReplacer(path) },
		platform:       Detect(),
		currentVersion: currentVersion,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// CurrentVersion returns the version the updater considers installed
func (u *Updater) CurrentVersion() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.currentVersion
}

// CheckForUpdate returns the available update, or nil when the running version
// is the latest. Failures are returned as *CheckError.
func (u *Updater) CheckForUpdate(ctx context.Context) (*UpdateInfo, error) {
	release, err := u.checker.LatestRelease(ctx)
	if err != nil {
		return nil, &CheckError{Err: err}
	}

	current := u.CurrentVersion()
	newer, err := IsNewer(current, release.Version)
	if err != nil {
		return nil, &CheckError{Err: err}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if !newer {
		log.Debugf("running version %s is up to date (latest %s)", current, release.Version)
		u.pending = nil
		return nil, nil
	}

	log.Infof("update available: %s -> %s", current, release.Version)
	u.pending = release
	return release.Info(), nil
}

// DownloadAndInstall installs the release found by the last CheckForUpdate.
// Download events are sent on events, which the caller owns and closes.
// Transfer and verification failures are *DownloadError, everything that
// happens to the installed binary is *InstallError.
func (u *Updater) DownloadAndInstall(ctx context.Context, events chan<- DownloadEvent) error {
	u.mu.Lock()
	release := u.pending
	u.mu.Unlock()

	if release == nil {
		return &InstallError{Err: errors.New("no pending update, check for updates first")}
	}

	if !u.platform.IsSupported() {
		return &InstallError{Err: fmt.Errorf("unsupported platform: %s/%s", u.platform.OS, u.platform.Arch)}
	}

	if release.AssetURL == "" {
		return &DownloadError{Err: fmt.Errorf("no binary available for %s/%s", u.platform.OS, u.platform.Arch)}
	}

	if release.SHA256 == "" && release.ChecksumURL == "" {
		return &DownloadError{Err: errors.New("no checksums available for verification")}
	}

	installPath, err := u.InstallPath()
	if err != nil {
		return &InstallError{Err: err}
	}

	tmpDir, err := os.MkdirTemp("", "selfup-update-")
	if err != nil {
		return &DownloadError{Err: fmt.Errorf("failed to create temp directory: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Warnf("failed to remove temp directory %s: %v", tmpDir, err)
		}
	}()

	tmpBinary := filepath.Join(tmpDir, u.platform.BinaryName())
	if err := u.downloader.Download(ctx, release.AssetURL, tmpBinary, events); err != nil {
		return &DownloadError{Err: err}
	}

	if release.SHA256 != "" {
		err = u.downloader.VerifySHA256(tmpBinary, release.SHA256)
	} else {
		err = u.downloader.VerifyChecksum(ctx, tmpBinary, release.ChecksumURL)
	}
	if err != nil {
		return &DownloadError{Err: fmt.Errorf("checksum verification failed: %w", err)}
	}

	current := u.CurrentVersion()
	if u.archiver != nil {
		if b, err := u.archiver.Create(installPath, current); err != nil {
			log.Warnf("failed to archive %s before install: %v", installPath, err)
		} else {
			log.Debugf("archived %s as backup %s", installPath, b.ID)
		}
	}

	log.Infof("installing %s to %s", release.Version, installPath)
	if err := u.newReplacer(installPath).Replace(tmpBinary); err != nil {
		return &InstallError{Err: err}
	}

	if u.archiver != nil && u.keepBackups > 0 {
		if _, err := u.archiver.Prune(u.keepBackups); err != nil {
			log.Warnf("failed to prune backups: %v", err)
		}
	}

	u.mu.Lock()
	u.currentVersion = release.Version
	u.pending = nil
	u.mu.Unlock()

	return nil
}

// InstallPath returns the binary that gets replaced, the running executable
// unless overridden.
func (u *Updater) InstallPath() (string, error) {
	if u.installPath != "" {
		return u.installPath, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get current binary path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve binary path: %w", err)
	}

	return exe, nil
}
