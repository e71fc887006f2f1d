package domain

import "context"

// Notifier announces newly stored transcripts to an outside channel (Telegram, Slack).
type Notifier interface {
	Name() string
	NotifyTranscript(ctx context.Context, rec TranscriptRecord) error
}
