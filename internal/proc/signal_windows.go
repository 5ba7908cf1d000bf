//go:build windows

package proc

const defaultInterpreter = "cmd"

// Windows has no SIGTERM; graceful and forced termination collapse into
// TerminateProcess.
func (p *osProcess) Terminate() error {
	return p.cmd.Process.Kill()
}

func (p *osProcess) Kill() error {
	return p.cmd.Process.Kill()
}
