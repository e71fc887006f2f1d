// Package notify announces stored transcripts to Telegram and Slack.
package notify

import (
	"fmt"
	"strings"

	"transcripthost/internal/domain"

	"github.com/dustin/go-humanize"
)

// FormatTranscriptNotice renders the plain-text announcement shared by all
// notifiers. Relative record URLs are resolved against baseURL.
func FormatTranscriptNotice(rec domain.TranscriptRecord, baseURL string) string {
	var sb strings.Builder
	sb.WriteString("New transcript stored\n")

	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, value)
		}
	}
	line("Ticket", rec.TicketID)
	line("Type", rec.TicketType)
	line("Channel", rec.ChannelID)
	line("User", rec.Username)
	line("Closed by", rec.ClosedBy)
	if rec.MessageCount > 0 {
		line("Messages", fmt.Sprint(rec.MessageCount))
	}
	if rec.Size > 0 {
		line("Size", humanize.Bytes(uint64(rec.Size)))
	}
	sb.WriteString(resolveURL(rec.URL, baseURL))
	return sb.String()
}

func resolveURL(u, baseURL string) string {
	if baseURL == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(u, "/")
}
