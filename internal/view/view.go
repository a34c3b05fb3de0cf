// Package view renders the inbox for the terminal.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"dropinbox/internal/domain"
)

const (
	senderWidth  = 32
	subjectWidth = 48
)

// ProviderWarning is shown next to the address. Some provider domains do not
// receive mail.
const ProviderWarning = "Some dropmail.me domains do not receive mail. If nothing arrives within 15 seconds, end the session and generate a new address."

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	addressStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	indexStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Width(4)
	subjectStyle = lipgloss.NewStyle().Bold(true)
)

// Header shows the mailbox address and when it expires.
func Header(sess domain.Session, now time.Time) string {
	var b strings.Builder
	b.WriteString(addressStyle.Render(sess.Address))
	b.WriteString("\n")

	remaining := sess.Expiry().Sub(now).Truncate(time.Second)
	if remaining > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("expires %s (in %s)", sess.Expiry().Local().Format(time.DateTime), remaining)))
	} else {
		b.WriteString(warnStyle.Render("expired at " + sess.Expiry().Local().Format(time.DateTime)))
	}
	b.WriteString("\n")
	b.WriteString(warnStyle.Render("! " + ProviderWarning))
	return b.String()
}

// Inbox lists messages with their 1-based position.
func Inbox(msgs []domain.Message) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Inbox (%d)", len(msgs))))
	b.WriteString("\n")

	if len(msgs) == 0 {
		b.WriteString(mutedStyle.Render("Waiting for e-mails..."))
		return b.String()
	}

	for i, m := range msgs {
		b.WriteString(indexStyle.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(truncate(m.Sender, senderWidth))
		b.WriteString("  ")
		b.WriteString(subjectStyle.Render(truncate(subjectOrPlaceholder(m.Subject), subjectWidth)))
		if i < len(msgs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Message renders the reading pane for one message.
func Message(m domain.Message) string {
	var b strings.Builder
	b.WriteString(subjectStyle.Render(subjectOrPlaceholder(m.Subject)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("From: " + m.Sender))
	if m.ReceivedAt != nil {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Date: " + m.ReceivedAt.Local().Format(time.DateTime)))
	}
	if m.Size > 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Size: %d bytes", m.Size)))
	}
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(m.Body, "\r\n"))
	return b.String()
}

func Error(msg string) string {
	return errorStyle.Render(msg)
}

func Muted(msg string) string {
	return mutedStyle.Render(msg)
}

func subjectOrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(no subject)"
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s + strings.Repeat(" ", width-len(r))
	}
	return string(r[:width-1]) + "…"
}
