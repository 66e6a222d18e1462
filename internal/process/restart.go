// Package process relaunches the running executable after an update.
package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RelaunchedEnv is set to "1" in the environment of a relaunched process.
const RelaunchedEnv = "SELFUP_RELAUNCHED"

// Relaunched reports whether this process was started by Restart.
func Relaunched() bool {
	return os.Getenv(RelaunchedEnv) == "1"
}

// Restarter replaces the current process with a fresh copy of the executable.
type Restarter struct {
	path       string
	args       []string
	executable func() (string, error)
	environ    func() []string
	relaunch   func(path string, argv, env []string) error
}

// NewRestarter creates a Restarter that relaunches path with args. An empty
// path means the running executable, empty args the current arguments.
func NewRestarter(path string, args ...string) *Restarter {
	return &Restarter{
		path:       path,
		args:       args,
		executable: os.Executable,
		environ:    os.Environ,
		relaunch:   relaunch,
	}
}

// Restart starts the executable again. It does not return on success.
func (r *Restarter) Restart() error {
	path := r.path
	if path == "" {
		exe, err := r.executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		path = exe
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	args := r.args
	if len(args) == 0 && len(os.Args) > 1 {
		args = os.Args[1:]
	}
	argv := append([]string{path}, args...)

	log.WithField("argv", argv).Info("relaunching")
	if err := r.relaunch(path, argv, withRelaunchedEnv(r.environ())); err != nil {
		return fmt.Errorf("failed to relaunch %s: %w", path, err)
	}
	return nil
}

func withRelaunchedEnv(env []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, RelaunchedEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, RelaunchedEnv+"=1")
}
