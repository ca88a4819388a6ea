package recorder

import (
	"os"

	ptyDevice "github.com/creack/pty"
	"golang.org/x/term"

	"github.com/qnkhuat/termshow/internal/cfg"
)

// SizeFunc reports terminal columns and rows.
type SizeFunc func() (cols, rows uint)

// TerminalSize asks the tty on stdout, then stdin, and settles for 80x25.
func TerminalSize() (cols, rows uint) {
	if ws, err := ptyDevice.GetsizeFull(os.Stdout); err == nil && ws.Cols > 0 && ws.Rows > 0 {
		return uint(ws.Cols), uint(ws.Rows)
	}
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil && w > 0 && h > 0 {
		return uint(w), uint(h)
	}
	return cfg.RECORDER_DEFAULT_COLS, cfg.RECORDER_DEFAULT_ROWS
}

// Interactive reports whether stdin is a terminal a user can type into.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// FixedSize always reports the same geometry.
func FixedSize(cols, rows uint) SizeFunc {
	return func() (uint, uint) { return cols, rows }
}
