package domain

import (
	"context"
	"io"
	"time"
)

// StoredFile describes a blob held by a BlobStore.
type StoredFile struct {
	Name        string    `json:"filename"`
	ContentType string    `json:"mimetype,omitempty"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"uploadedAt"`
}

// BlobStore stores named byte sequences (uploads and rendered transcripts).
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (StoredFile, error)
	Open(ctx context.Context, name string) (io.ReadSeekCloser, StoredFile, error)
	List(ctx context.Context) ([]StoredFile, error)
	Delete(ctx context.Context, name string) error
}

// TranscriptRecord is the metadata kept for every stored transcript.
type TranscriptRecord struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	TicketID     string    `json:"ticketId,omitempty"`
	ChannelID    string    `json:"channelId,omitempty"`
	GuildID      string    `json:"guildId,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Username     string    `json:"username,omitempty"`
	ClosedBy     string    `json:"closedBy,omitempty"`
	TicketType   string    `json:"ticketType,omitempty"`
	Inquiry      string    `json:"inquiry,omitempty"`
	OpenedAt     string    `json:"openedAt,omitempty"`
	ClosedAt     string    `json:"closedAt,omitempty"`
	MessageCount int       `json:"messageCount"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// TranscriptIndex persists TranscriptRecords. List returns records oldest first.
type TranscriptIndex interface {
	Append(ctx context.Context, rec TranscriptRecord) error
	List(ctx context.Context) ([]TranscriptRecord, error)
	Get(ctx context.Context, id string) (*TranscriptRecord, error)
	Close() error
}
