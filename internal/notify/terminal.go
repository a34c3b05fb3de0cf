package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// TerminalFocus treats an interactive terminal as focused, whether or not its
// window is in front. Output that is redirected or piped counts as unfocused.
type TerminalFocus struct {
	fd int
}

func NewTerminalFocus(fd int) TerminalFocus {
	return TerminalFocus{fd: fd}
}

func (f TerminalFocus) Focused() bool {
	return term.IsTerminal(f.fd)
}

// Unfocused always reports the inbox as not visible.
type Unfocused struct{}

func (Unfocused) Focused() bool { return false }

var alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))

// TerminalNotifier rings the terminal bell and prints one highlighted line.
type TerminalNotifier struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w, now: time.Now}
}

func (n *TerminalNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	line := alertStyle.Render(fmt.Sprintf("[%s] %s: %s", n.now().Format("15:04:05"), title, body))
	_, err := fmt.Fprintf(n.w, "\a%s\n", line)
	return err
}
