package backup

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DefaultKeepCount is the default number of backups to retain.
const DefaultKeepCount = 3

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []BackupInfo `json:"deleted" yaml:"deleted"`
	Kept    int          `json:"kept" yaml:"kept"`
}

// Prune removes old backups, keeping only the most recent N backups. It keeps
// going past individual failures and reports all of them.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}

	// Backups are already sorted newest first
	if len(backups) <= keep {
		result.Kept = len(backups)
		return result, nil
	}

	result.Kept = keep

	var errs *multierror.Error
	for _, backup := range backups[keep:] {
		if err := m.Delete(backup.ID); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to delete backup %s: %w", backup.ID, err))
			result.Kept++
			continue
		}
		result.Deleted = append(result.Deleted, backup)
	}

	return result, errs.ErrorOrNil()
}
