package proc

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// ExecLauncher starts commands via os/exec with piped stdout/stderr and the
// child placed in its own process group.
type ExecLauncher struct {
	Interpreter string // overrides the platform default when set
}

func (l ExecLauncher) Launch(c Command) (Process, error) {
	interp := c.Interpreter
	if interp == "" {
		interp = l.Interpreter
	}
	if interp == "" {
		interp = defaultInterpreter
	}
	if c.EntryPath == "" {
		return nil, errors.New("empty entry path")
	}

	args := append([]string{c.EntryPath}, c.Args...)
	cmd := exec.Command(interp, args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.EntryPath, err)
	}
	return &osProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type osProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (p *osProcess) PID() int          { return p.cmd.Process.Pid }
func (p *osProcess) Stdout() io.Reader { return p.stdout }
func (p *osProcess) Stderr() io.Reader { return p.stderr }
func (p *osProcess) Wait() error       { return p.cmd.Wait() }

// ExitCode maps a Wait error to a conventional exit code: 0 for clean exit,
// the child's code when it exited, -1 for signals and non-exit errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
