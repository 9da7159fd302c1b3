//go:build windows

package history

import "os/exec"

// killProcessGroup is a no-op on Windows. Cancellation kills git only and
// WaitDelay releases the pipes.
func killProcessGroup(cmd *exec.Cmd) {}
