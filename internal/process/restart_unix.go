//go:build !windows

package process

import "golang.org/x/sys/unix"

// relaunch replaces the process image in place.
func relaunch(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
