// Package state records an in-flight update so the relaunched process can
// report whether it succeeded.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	fileName = "update.state.json"

	// StaleAfter is how long an in-progress record stays meaningful.
	StaleAfter = 5 * time.Minute
)

// Status is the lifecycle of a recorded update.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// UpdateState is persisted right before the application restarts.
type UpdateState struct {
	PreviousVersion string    `json:"previous_version"`
	TargetVersion   string    `json:"target_version"`
	Attempt         string    `json:"attempt"`
	StartedAt       time.Time `json:"started_at"`
	Status          Status    `json:"status"`
}

// Store reads and writes the state file in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// DefaultDir returns $XDG_STATE_HOME/selfup, falling back to ~/.local/state/selfup.
func DefaultDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "selfup"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "selfup"), nil
}

// Path returns the full path of the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Begin records an in-progress update from previous to target.
func (s *Store) Begin(previous, target, attempt string) error {
	return s.Write(&UpdateState{
		PreviousVersion: previous,
		TargetVersion:   target,
		Attempt:         attempt,
		StartedAt:       s.now().UTC(),
		Status:          StatusInProgress,
	})
}

// Read returns the recorded state, or nil if there is none.
func (s *Store) Read() (*UpdateState, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st UpdateState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &st, nil
}

// Write atomically replaces the state file.
func (s *Store) Write(st *UpdateState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	path := s.Path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Clear removes the state file.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// CheckPostUpdate resolves a pending record against the running version and
// clears it. It returns nil when there was nothing to report.
func (s *Store) CheckPostUpdate(currentVersion string) (*UpdateState, error) {
	st, err := s.Read()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}

	if st.Status != StatusInProgress {
		log.Debugf("found finished update state (%s), cleaning up", st.Status)
		return nil, s.Clear()
	}

	if age := s.now().Sub(st.StartedAt); age > StaleAfter {
		log.Warnf("found stale update state (started %v ago), cleaning up", age.Round(time.Second))
		return nil, s.Clear()
	}

	logger := log.WithField("attempt", st.Attempt)
	if currentVersion == st.TargetVersion {
		st.Status = StatusCompleted
		logger.Infof("update to %s completed (previous: %s)", st.TargetVersion, st.PreviousVersion)
	} else {
		st.Status = StatusFailed
		logger.Warnf("version mismatch after update: running %s, expected %s (previous: %s)",
			currentVersion, st.TargetVersion, st.PreviousVersion)
	}

	return st, s.Clear()
}
