package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qnkhuat/termshow/internal/cfg"
	"github.com/qnkhuat/termshow/internal/tmpfile"
	"github.com/qnkhuat/termshow/pkg/client"
	"github.com/qnkhuat/termshow/pkg/history"
	"github.com/qnkhuat/termshow/pkg/message"
	"github.com/qnkhuat/termshow/pkg/playback"
	"github.com/qnkhuat/termshow/pkg/recorder"
	"github.com/qnkhuat/termshow/pkg/secret"
	"github.com/qnkhuat/termshow/pkg/ttyrec"
)

type app struct {
	settings cfg.Settings
	scratch  *tmpfile.Registry
	out      io.Writer

	// nil means recorder.ExecRunner
	runner      recorder.Runner
	size        recorder.SizeFunc
	interactive func() bool
}

func (a *app) rootCmd() *cobra.Command {
	var save string
	var noUpload bool

	root := &cobra.Command{
		Use:   "termshow [--] [command args...]",
		Short: "Record a terminal session and share it",
		Long: "Records the login shell, or the given command, then uploads the session\n" +
			"to " + a.settings.Server + " and prints its link.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.record(cmd.Context(), args, save, !noUpload)
		},
	}
	// everything after the command name belongs to the command
	root.Flags().SetInterspersed(false)
	root.Flags().StringVar(&save, "save", "", "keep a copy as <prefix>.script and <prefix>.timing")
	root.Flags().BoolVar(&noUpload, "no-upload", false, "record without uploading, needs --save")

	root.AddCommand(
		a.uploadCmd(),
		a.deleteCmd(),
		a.listCmd(),
		a.replayCmd(),
		a.convertCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) record(ctx context.Context, command []string, save string, upload bool) error {
	if !upload && save == "" {
		return errors.New("--no-upload needs --save, otherwise the recording is lost")
	}

	session, err := recorder.Record(ctx, command, recorder.Options{
		Runner:  a.runner,
		Scratch: a.scratch,
		Size:    a.size,
		Out:     a.out,
	})
	if err != nil {
		return err
	}

	if save != "" {
		if err := writePair(save, session); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "saved %s.script and %s.timing\n", save, save)
	}
	if !upload {
		return nil
	}

	if err := a.upload(ctx, session); err != nil {
		if save == "" {
			// keep the recording so it can be retried with `termshow upload`
			if werr := a.rescue(session); werr != nil {
				log.Printf("Failed to keep recording: %s", werr)
			}
		}
		return err
	}
	return nil
}

// rescue copies the recording next to the working directory when the
// upload failed, since the scratch files are about to be removed.
func (a *app) rescue(session *message.TermSession) error {
	prefix := fmt.Sprintf("termshow-%d", time.Now().Unix())
	if err := writePair(prefix, session); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "upload failed, recording kept: retry with `termshow upload %s.script %s.timing`\n", prefix, prefix)
	return nil
}

func (a *app) newClient() (*client.Client, error) {
	conf := client.DefaultConfig(a.settings.Server)
	conf.InsecureSkipVerify = a.settings.Insecure
	return client.New(conf)
}

func (a *app) upload(ctx context.Context, session *message.TermSession) error {
	c, err := a.newClient()
	if err != nil {
		return err
	}
	key, err := secret.New(a.settings.SecretFile).GetOrCreate()
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "uploading, please wait.")
	link, err := c.Upload(ctx, session, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, link)

	a.withHistory(func(db *history.DB) error {
		return db.Add(history.Entry{
			URL:        link,
			Cols:       session.Cols,
			Lines:      session.Rows,
			Backend:    session.Backend,
			UploadedAt: time.Now(),
		})
	})
	return nil
}

// withHistory runs fn against the local history. Failures are logged only,
// the history is a convenience.
func (a *app) withHistory(fn func(db *history.DB) error) {
	db, err := history.Open(a.settings.HistoryFile)
	if err != nil {
		log.Printf("Failed to open history: %s", err)
		return
	}
	defer db.Close()
	if err := fn(db); err != nil {
		log.Printf("Failed to update history: %s", err)
	}
}

func (a *app) uploadCmd() *cobra.Command {
	var cols, rows uint
	cmd := &cobra.Command{
		Use:   "upload <script> <timing>",
		Short: "Upload a script/timing pair recorded earlier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}
			session.Cols, session.Rows = recorder.TerminalSize()
			if cols > 0 {
				session.Cols = cols
			}
			if rows > 0 {
				session.Rows = rows
			}
			return a.upload(cmd.Context(), session)
		},
	}
	cmd.Flags().UintVar(&cols, "cols", 0, "terminal width, defaults to the current terminal")
	cmd.Flags().UintVar(&rows, "lines", 0, "terminal height, defaults to the current terminal")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <url>",
		Short: "Delete a session uploaded from this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := args[0]
			if !yes {
				if !a.isInteractive() {
					return errors.New("refusing to delete without confirmation, pass --yes")
				}
				prompt := promptui.Prompt{
					Label:     fmt.Sprintf("Delete %s", link),
					IsConfirm: true,
				}
				if _, err := prompt.Run(); err != nil {
					fmt.Fprintln(a.out, "Aborted")
					return nil
				}
			}
			return a.delete(cmd.Context(), link)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) isInteractive() bool {
	if a.interactive != nil {
		return a.interactive()
	}
	return recorder.Interactive()
}

func (a *app) delete(ctx context.Context, link string) error {
	c, err := a.newClient()
	if err != nil {
		return err
	}
	key, err := secret.New(a.settings.SecretFile).GetOrCreate()
	if err != nil {
		return err
	}

	a.withHistory(func(db *history.DB) error {
		_, ok, err := db.Get(link)
		if err == nil && !ok {
			fmt.Fprintf(a.out, "%s is not in the upload history, the server may not accept this machine's secret\n", link)
		}
		return err
	})

	out, err := c.Delete(ctx, link, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, out)

	a.withHistory(func(db *history.DB) error {
		return db.Remove(link)
	})
	return nil
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions uploaded from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := history.Open(a.settings.HistoryFile)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, "No uploads yet")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(a.out, "%s  %3dx%-3d %-6s %s\n",
					e.UploadedAt.Format("2006-01-02 15:04"), e.Cols, e.Lines, e.Backend, e.URL)
			}
			return nil
		},
	}
}

func (a *app) replayCmd() *cobra.Command {
	var speed float64
	var maxWait time.Duration
	cmd := &cobra.Command{
		Use:   "replay <script> <timing>",
		Short: "Play a recording back in this terminal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}
			p := playback.New(session, speed, maxWait)
			d, err := p.Duration()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "replaying %s\n", d)
			return p.Play(cmd.Context(), a.out)
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed, 2 is twice as fast")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "cap on any single pause, 0 for none")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <ttyrecord> <prefix>",
		Short: "Convert a ttyrecord into <prefix>.script and <prefix>.timing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			session, err := ttyrec.Convert(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := writePair(args[1], session); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s.script and %s.timing\n", args[1], args[1])
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "termshow %s\n", cfg.CLIENT_VERSION)
		},
	}
}

func readPair(scriptPath, timingPath string) (*message.TermSession, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, err
	}
	timing, err := os.ReadFile(timingPath)
	if err != nil {
		return nil, err
	}
	session := &message.TermSession{Script: script, Timing: string(timing), Backend: message.BScript}
	if bytes.HasPrefix(script, []byte(message.ConvertedHeader)) {
		session.Backend = message.BTtyrec
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", timingPath, err)
	}
	return session, nil
}

func writePair(prefix string, session *message.TermSession) error {
	if err := os.WriteFile(prefix+".script", session.Script, 0o600); err != nil {
		return err
	}
	return os.WriteFile(prefix+".timing", []byte(session.Timing), 0o600)
}
