/*
Recording a terminal session through one of two external programs
- script(1) writes the canonical script/timing pair directly
- ttyrec(1) writes a binary ttyrecord that is converted afterwards

Which one is used is decided empirically by Select: the script found on the
host is asked to record `echo foo`, and only if the result looks right is it
trusted with the real session.
*/
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/pkg/message"
)

var ErrUnavailable = errors.New("could not run 'script' or 'ttyrec', please install ttyrec (brew install ttyrec, apt-get install ttyrec)")

// Recorder captures one session. An empty command records the login shell.
type Recorder interface {
	Name() string
	Record(ctx context.Context, command []string) (*message.TermSession, error)
}

// Select probes the host and returns the recorder to use.
func Select(ctx context.Context, runner Runner, scratch Scratch) (Recorder, error) {
	if path, err := runner.LookPath("script"); err == nil {
		s := &ScriptStyle{Path: path, Runner: runner, Scratch: scratch}
		if s.Probe(ctx) {
			log.Printf("Using script at %s", path)
			return s, nil
		}
		log.Printf("script at %s failed the probe, falling back to ttyrec", path)
	} else {
		log.Printf("script not found: %s", err)
	}

	if path, err := runner.LookPath("ttyrec"); err == nil {
		log.Printf("Using ttyrec at %s", path)
		return &EventStream{Path: path, Runner: runner, Scratch: scratch}, nil
	}
	return nil, ErrUnavailable
}

type Options struct {
	Runner  Runner
	Scratch Scratch

	// Terminal geometry reported with the session. Defaults to TerminalSize.
	Size SizeFunc

	// Where the start and finish notices go. Defaults to stdout.
	Out io.Writer
}

// Record picks a backend, records command and fills in the geometry.
func Record(ctx context.Context, command []string, opts Options) (*message.TermSession, error) {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Size == nil {
		opts.Size = TerminalSize
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	rec, err := Select(ctx, opts.Runner, opts.Scratch)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log.Printf("Recording %s with %s: %q", id, rec.Name(), command)
	fmt.Fprintf(opts.Out, "termshow is recording, quit when you're done.\n")

	session, err := rec.Record(ctx, command)
	if err != nil {
		log.Printf("Recording %s failed: %s", id, err)
		return nil, err
	}

	fmt.Fprintf(opts.Out, "termshow recording finished\n")
	session.Cols, session.Rows = opts.Size()
	log.Printf("Recording %s done: %d script bytes, %dx%d", id, len(session.Script), session.Cols, session.Rows)
	return session, nil
}

// tolerateExit lets a recorder that exited non-zero through; its output is
// still worth reading. Anything else means the process never ran properly.
func tolerateExit(name string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Printf("%s exited with status %d", name, exitErr.ExitCode())
		return nil
	}
	return err
}
