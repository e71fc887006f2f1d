package domain

import "time"

// Message is a single chat message as received from the upstream platform.
type Message struct {
	ID          string
	Author      Author
	Content     string
	Timestamp   time.Time
	Attachments []Attachment
	Embeds      []Embed
}

// Author identifies who sent a message.
type Author struct {
	ID         string
	Username   string
	GlobalName string // display name override; empty when unset upstream
	Avatar     string // avatar hash; empty = platform default avatar
	Bot        bool
}

// DisplayName returns the name shown in a transcript.
func (a Author) DisplayName() string {
	if a.GlobalName != "" {
		return a.GlobalName
	}
	return a.Username
}

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
	Size        int
}

type Embed struct {
	Title       string
	Description string
}

// ChannelContext is the channel a transcript was generated from.
type ChannelContext struct {
	ID      string
	Name    string
	GuildID string
}

// TranscriptDocument is a rendered transcript plus bookkeeping fields.
type TranscriptDocument struct {
	HTML         []byte
	MessageCount int
	GeneratedAt  time.Time
}
