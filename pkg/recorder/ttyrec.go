package recorder

import (
	"context"
	"fmt"
	"os"

	"github.com/alessio/shellescape"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/pkg/message"
	"github.com/qnkhuat/termshow/pkg/ttyrec"
)

// EventStream records with ttyrec(1), started directly without a shell.
type EventStream struct {
	Path    string
	Runner  Runner
	Scratch Scratch
}

func (r *EventStream) Name() string {
	return message.BTtyrec
}

// Args returns [-e<command>] <output>. ttyrec hands -e to a shell itself,
// hence the quoting.
func (r *EventStream) Args(command []string, outPath string) []string {
	var args []string
	if len(command) > 0 {
		args = append(args, "-e"+shellescape.QuoteCommand(command))
	}
	return append(args, outPath)
}

func (r *EventStream) Record(ctx context.Context, command []string) (*message.TermSession, error) {
	outPath, err := r.Scratch.Create("termshow.ttyrec.*")
	if err != nil {
		return nil, err
	}

	err = r.Runner.Run(ctx, Command{Path: r.Path, Args: r.Args(command, outPath)})
	if err = tolerateExit("ttyrec", err); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading ttyrec output: %w", err)
	}
	log.Printf("Converting %d bytes of ttyrecord", len(raw))
	return ttyrec.Convert(raw)
}
