// Package export turns a message list into a human-readable transcript. It is
// a pure transform over engine state; it never touches the stores.
package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/0DidUStudy/ragchat/internal/history"
)

const separator = "\n\n----------------------------------------\n\n"

func roleLabel(r history.Role) string {
	switch r {
	case history.RoleUser:
		return "用户"
	case history.RoleAssistant:
		return "助手"
	default:
		return string(r)
	}
}

// Transcript renders the conversation as plain text: role label, localized
// timestamp and content per entry, entries separated by a delimiter line.
func Transcript(msgs []history.Message) string {
	entries := make([]string, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, fmt.Sprintf("[%s] %s\n%s",
			roleLabel(m.Role),
			m.Timestamp.Local().Format("2006-01-02 15:04:05"),
			m.Content))
	}
	return strings.Join(entries, separator) + "\n"
}

// DefaultFilename names the downloadable artifact after the export moment.
func DefaultFilename(now time.Time) string {
	return "chat-" + now.Format("20060102-150405") + ".txt"
}

// WriteFile writes the transcript for the CLI's export command.
func WriteFile(path string, msgs []history.Message) error {
	if err := os.WriteFile(path, []byte(Transcript(msgs)), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
