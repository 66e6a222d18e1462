//go:build windows

package process

import (
	"os"
	"os/exec"
)

// relaunch starts a detached copy and exits, since Windows cannot exec in place.
func relaunch(path string, argv, env []string) error {
	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
