package dropmail

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// extractBody returns the first text/plain part of a raw RFC 5322 message,
// or the first text/html part when there is no plain one.
func extractBody(raw string) (string, error) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}
	defer mr.Close()

	var html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return html, fmt.Errorf("failed to read part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		t, _, err := h.ContentType()
		if err != nil || t == "" {
			t = "text/plain"
		}

		b, err := io.ReadAll(p.Body)
		if err != nil {
			return html, fmt.Errorf("failed to read body: %w", err)
		}

		switch t {
		case "text/plain":
			return string(b), nil
		case "text/html":
			if html == "" {
				html = string(b)
			}
		}
	}
	return html, nil
}
