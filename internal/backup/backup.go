// Package backup keeps copies of binaries replaced by an update so a previous
// version can be restored.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Backup describes a single archived binary.
type Backup struct {
	ID         string    `json:"id" yaml:"id"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	Version    string    `json:"version" yaml:"version"`
	SourcePath string    `json:"source_path" yaml:"source_path"`
	Size       int64     `json:"size" yaml:"size"`
}

// BackupInfo provides summary information about a backup for listing.
type BackupInfo struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Version   string    `json:"version" yaml:"version"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager handles backup operations.
type Manager struct {
	backupDir string
	now       func() time.Time
}

// NewManager creates a backup manager rooted in the user cache directory.
func NewManager() (*Manager, error) {
	backupDir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return NewManagerWithDir(backupDir), nil
}

// NewManagerWithDir creates a backup manager with a custom directory.
func NewManagerWithDir(backupDir string) *Manager {
	return &Manager{
		backupDir: backupDir,
		now:       time.Now,
	}
}

// DefaultDir returns the default backup directory path.
func DefaultDir() (string, error) {
	// Use XDG_CACHE_HOME or default to ~/.cache
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "selfup", "backups"), nil
}

// Create copies binaryPath into the backup directory and records its version.
func (m *Manager) Create(binaryPath, version string) (*Backup, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := m.now()
	id := m.nextID(now)

	size, err := copyFile(binaryPath, m.binaryPath(id), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to copy binary: %w", err)
	}

	backup := &Backup{
		ID:         id,
		CreatedAt:  now,
		Version:    version,
		SourcePath: binaryPath,
		Size:       size,
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		_ = os.Remove(m.binaryPath(id))
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}

	if err := os.WriteFile(m.metaPath(id), data, 0644); err != nil {
		_ = os.Remove(m.binaryPath(id))
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	return backup, nil
}

// nextID derives an id from the timestamp, suffixed when it is already taken.
func (m *Manager) nextID(now time.Time) string {
	base := now.Format("2006-01-02-150405")
	id := base
	for i := 1; ; i++ {
		if _, err := os.Stat(m.metaPath(id)); os.IsNotExist(err) {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

// List returns all backups sorted by creation time (newest first).
func (m *Manager) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		backup, err := m.loadBackup(filepath.Join(m.backupDir, entry.Name()))
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			ID:        backup.ID,
			CreatedAt: backup.CreatedAt,
			Version:   backup.Version,
			Size:      backup.Size,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Get retrieves a backup by ID. Use "latest" to get the most recent backup.
func (m *Manager) Get(id string) (*Backup, error) {
	if id == "latest" {
		backups, err := m.List()
		if err != nil {
			return nil, err
		}
		if len(backups) == 0 {
			return nil, fmt.Errorf("no backups found")
		}
		id = backups[0].ID
	}

	return m.loadBackup(m.metaPath(id))
}

// Restore installs the binary of backup id at target, replacing it atomically.
func (m *Manager) Restore(id, target string) (*Backup, error) {
	backup, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	tmp := target + ".restore"
	if _, err := copyFile(m.binaryPath(backup.ID), tmp, 0755); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to stage backup %s: %w", backup.ID, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to restore backup %s: %w", backup.ID, err)
	}

	return backup, nil
}

// Delete removes a backup by ID.
func (m *Manager) Delete(id string) error {
	path := m.metaPath(id)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", id)
	}

	if err := os.Remove(m.binaryPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup binary: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	return nil
}

// BackupDir returns the backup directory path.
func (m *Manager) BackupDir() string {
	return m.backupDir
}

func (m *Manager) metaPath(id string) string {
	return filepath.Join(m.backupDir, id+".json")
}

func (m *Manager) binaryPath(id string) string {
	return filepath.Join(m.backupDir, id+".bin")
}

// loadBackup reads and parses a backup file.
func (m *Manager) loadBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup not found: %s", filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("failed to parse backup file: %w", err)
	}

	return &backup, nil
}

func copyFile(src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}

	return n, nil
}
