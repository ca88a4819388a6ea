package recorder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alessio/shellescape"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/internal/cfg"
	"github.com/qnkhuat/termshow/pkg/message"
)

// ScriptStyle records with script(1), which emits its timing on stderr.
// It goes through sh so that stderr can be sent to its own file.
type ScriptStyle struct {
	Path    string
	Shell   string // defaults to /bin/sh
	Runner  Runner
	Scratch Scratch
}

func (r *ScriptStyle) Name() string {
	return message.BScript
}

// Probe records `echo foo` and reports whether both files came out usable:
// the script holds the marker and the timing starts with a number. Some
// platforms ship a script that runs fine but writes no timing, or garbage.
func (r *ScriptStyle) Probe(ctx context.Context) bool {
	scriptPath, timingPath, err := r.scratchPair()
	if err != nil {
		log.Printf("Probe could not create scratch files: %s", err)
		return false
	}

	command := strings.Fields(cfg.RECORDER_PROBE_COMMAND)
	err = r.Runner.Run(ctx, r.command(command, scriptPath, timingPath, true))
	if err != nil {
		// The files decide, not the exit status.
		log.Printf("Probe run returned: %s", err)
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return false
	}
	timing, err := os.ReadFile(timingPath)
	if err != nil {
		return false
	}
	return ProbeVerdict(script, timing)
}

// ProbeVerdict is the acceptance test applied to the probe's output.
func ProbeVerdict(script, timing []byte) bool {
	if !strings.Contains(string(script), cfg.RECORDER_PROBE_MARKER) {
		return false
	}
	return len(timing) > 0 && timing[0] >= '0' && timing[0] <= '9'
}

func (r *ScriptStyle) Record(ctx context.Context, command []string) (*message.TermSession, error) {
	scriptPath, timingPath, err := r.scratchPair()
	if err != nil {
		return nil, err
	}

	err = r.Runner.Run(ctx, r.command(command, scriptPath, timingPath, false))
	if err = tolerateExit("script", err); err != nil {
		return nil, fmt.Errorf("running script: %w", err)
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("reading script output: %w", err)
	}
	timing, err := os.ReadFile(timingPath)
	if err != nil {
		return nil, fmt.Errorf("reading timing output: %w", err)
	}
	return &message.TermSession{
		Script:  script,
		Timing:  string(timing),
		Backend: message.BScript,
	}, nil
}

// CommandLine builds `script -q -t [-c CMD] FILE 2>TIMING` with every word quoted.
func (r *ScriptStyle) CommandLine(command []string, scriptPath, timingPath string) string {
	argv := []string{r.Path, "-q", "-t"}
	if len(command) > 0 {
		argv = append(argv, "-c", shellescape.QuoteCommand(command))
	}
	argv = append(argv, scriptPath)
	return shellescape.QuoteCommand(argv) + " 2>" + shellescape.Quote(timingPath)
}

func (r *ScriptStyle) command(command []string, scriptPath, timingPath string, quiet bool) Command {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	return Command{
		Path:  shell,
		Args:  []string{"-c", r.CommandLine(command, scriptPath, timingPath)},
		Quiet: quiet,
	}
}

func (r *ScriptStyle) scratchPair() (string, string, error) {
	scriptPath, err := r.Scratch.Create("termshow.script.*")
	if err != nil {
		return "", "", err
	}
	timingPath, err := r.Scratch.Create("termshow.timing.*")
	if err != nil {
		return "", "", err
	}
	return scriptPath, timingPath, nil
}
