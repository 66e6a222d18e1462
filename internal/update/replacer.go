package update

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// BinaryReplacer safely replaces the binary with rollback support
type BinaryReplacer struct {
	currentPath string
	backupPath  string
	verifyArgs  []string
}

// NewBinaryReplacer creates a new binary replacer
func NewBinaryReplacer(currentPath string) *BinaryReplacer {
	return &BinaryReplacer{
		currentPath: currentPath,
		backupPath:  currentPath + ".backup",
		verifyArgs:  []string{"--version"},
	}
}

// Replace replaces the current binary with the new one. Any failure after the
// backup exists triggers a rollback; rollback failures are reported together
// with the original cause.
func (r *BinaryReplacer) Replace(newBinary string) error {
	if err := r.createBackup(); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	if err := os.Rename(newBinary, r.currentPath); err != nil {
		return r.rollbackAfter(fmt.Errorf("failed to replace binary: %w", err))
	}

	if err := os.Chmod(r.currentPath, 0755); err != nil {
		return r.rollbackAfter(fmt.Errorf("failed to set permissions: %w", err))
	}

	if err := r.verifyBinary(r.currentPath); err != nil {
		return r.rollbackAfter(fmt.Errorf("new binary verification failed: %w", err))
	}

	if err := os.Remove(r.backupPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to remove backup %s: %v", r.backupPath, err)
	}

	return nil
}

// Rollback restores the backup if update fails
func (r *BinaryReplacer) Rollback() error {
	if _, err := os.Stat(r.backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", r.backupPath)
	}

	if err := os.Rename(r.backupPath, r.currentPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}

	if err := os.Chmod(r.currentPath, 0755); err != nil {
		return fmt.Errorf("failed to set permissions on restored binary: %w", err)
	}

	if err := r.verifyBinary(r.currentPath); err != nil {
		return fmt.Errorf("restored binary verification failed: %w", err)
	}

	log.Infof("restored %s from backup", r.currentPath)
	return nil
}

func (r *BinaryReplacer) rollbackAfter(cause error) error {
	log.Warnf("install failed, rolling back: %v", cause)
	if err := r.Rollback(); err != nil {
		return multierror.Append(cause, fmt.Errorf("rollback failed: %w", err))
	}
	return cause
}

// createBackup copies the current binary next to itself, keeping its mode
func (r *BinaryReplacer) createBackup() error {
	src, err := os.Open(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to open current binary: %w", err)
	}
	defer func() { _ = src.Close() }()

	srcInfo, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat current binary: %w", err)
	}

	dst, err := os.OpenFile(r.backupPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(r.backupPath)
		return fmt.Errorf("failed to copy binary to backup: %w", err)
	}

	return nil
}

// verifyBinary verifies a binary works by running it with verifyArgs
func (r *BinaryReplacer) verifyBinary(path string) error {
	cmd := exec.Command(path, r.verifyArgs...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("binary verification failed: %w (output: %q)", err, out)
	}
	return nil
}
