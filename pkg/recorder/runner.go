package recorder

import (
	"context"
	"os"
	"os/exec"
)

// Command is one recorder subprocess invocation.
type Command struct {
	Path string
	Args []string

	// Quiet runs the process detached from the user's terminal. Used while probing.
	Quiet bool
}

// Runner starts recorder processes and blocks until they exit.
type Runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, c Command) error
}

// Scratch hands out files that outlive the recorder but not the process.
type Scratch interface {
	Create(pattern string) (string, error)
}

// ExecRunner runs commands on the host, wired to the current terminal.
type ExecRunner struct{}

func (ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = os.Environ()
	if !c.Quiet {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}
