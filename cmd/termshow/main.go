/*
termshow records a terminal session and publishes it to a showterm server.

	termshow                  record the login shell and upload it
	termshow -- vim notes.md  record a command
	termshow upload s t       upload a script/timing pair saved earlier
	termshow delete <url>     delete an upload made from this machine

Scratch files are removed on every exit path, including signals.
*/
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/internal/cfg"
	"github.com/qnkhuat/termshow/internal/logging"
	"github.com/qnkhuat/termshow/internal/tmpfile"
)

func main() {
	err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	settings, err := cfg.Load()
	if err != nil {
		return err
	}
	if err := logging.Config(settings.LogFile, "CLIENT: "); err != nil {
		// recording still works without a log file
		fmt.Fprintf(os.Stderr, "termshow: %s\n", err)
	}

	scratch := tmpfile.New("")
	stop := scratch.CleanupOnSignal()
	defer stop()
	defer func() {
		if err := scratch.Cleanup(); err != nil {
			log.Printf("Failed to clean scratch files: %s", err)
		}
	}()

	a := &app{settings: settings, scratch: scratch, out: os.Stdout}
	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
