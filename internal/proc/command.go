package proc

import "io"

// Command is the launch request for one child process. It is a plain value
// so tests can assert on exactly what would be executed.
type Command struct {
	EntryPath   string   // script to run
	Interpreter string   // defaults to the platform shell
	Args        []string // extra arguments after EntryPath
	Dir         string   // working directory, empty for inherited
	Env         []string // full environment in "K=V" form
}

// Process is the running side of a launched command. Terminate asks nicely
// (delivered to the process group where the platform supports it), Kill does
// not. Wait must be called exactly once, after both streams are drained.
type Process interface {
	PID() int
	Stdout() io.Reader
	Stderr() io.Reader
	Terminate() error
	Kill() error
	Wait() error
}

// Launcher turns a Command into a started Process. The exec-backed
// implementation is the default; tests substitute fakes.
type Launcher interface {
	Launch(cmd Command) (Process, error)
}
