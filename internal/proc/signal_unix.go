//go:build !windows

package proc

import "syscall"

const defaultInterpreter = "/bin/sh"

// Terminate sends SIGTERM to the child's process group so shell children go
// down with it. Falls back to the single process if the group is gone.
func (p *osProcess) Terminate() error {
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		return p.cmd.Process.Signal(syscall.SIGTERM)
	}
	return nil
}

// Kill sends SIGKILL to the process group.
func (p *osProcess) Kill() error {
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}
