// Package service implements the caller-facing transcript and file operations.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/metrics"
	"transcripthost/internal/storage"

	"github.com/google/uuid"
)

const (
	generatedPrefix = "transcript-"
	uploadedPrefix  = "transcript_"
	filePrefix      = "file-"

	transcriptContentType = "text/html; charset=utf-8"
)

// Fetcher returns a channel's recent messages in chronological order.
type Fetcher interface {
	Fetch(ctx context.Context, channelID string, limit int) ([]domain.Message, domain.ChannelContext, error)
}

// Renderer turns messages into an HTML document.
type Renderer interface {
	Render(messages []domain.Message, channel domain.ChannelContext) domain.TranscriptDocument
}

// Config wires the service's collaborators.
type Config struct {
	Fetcher      Fetcher
	Renderer     Renderer
	Files        domain.BlobStore // general uploads
	Transcripts  domain.BlobStore // generated and uploaded transcripts
	Index        domain.TranscriptIndex
	Notifiers    []domain.Notifier
	AllowedTypes []string

	// PublicBaseURL prefixes returned URLs; empty yields root-relative paths.
	PublicBaseURL string
	DefaultLimit  int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Service is safe for concurrent use; it keeps no per-request state.
type Service struct {
	fetcher      Fetcher
	renderer     Renderer
	files        domain.BlobStore
	transcripts  domain.BlobStore
	index        domain.TranscriptIndex
	notifiers    []domain.Notifier
	allowedTypes []string
	baseURL      string
	defaultLimit int
	logger       *slog.Logger
	now          func() time.Time
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	return &Service{
		fetcher:      cfg.Fetcher,
		renderer:     cfg.Renderer,
		files:        cfg.Files,
		transcripts:  cfg.Transcripts,
		index:        cfg.Index,
		notifiers:    cfg.Notifiers,
		allowedTypes: cfg.AllowedTypes,
		baseURL:      strings.TrimRight(cfg.PublicBaseURL, "/"),
		defaultLimit: cfg.DefaultLimit,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// GenerateRequest asks for a transcript of a channel's recent history.
type GenerateRequest struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId,omitempty"`
	GuildID   string `json:"guildId,omitempty"`
	Username  string `json:"username,omitempty"`
	ClosedBy  string `json:"closedBy,omitempty"`
	TicketID  string `json:"ticketId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type GenerateResult struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	MessageCount int       `json:"messageCount"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// GenerateTranscript fetches, renders, stores and indexes a transcript.
// Notification failures are logged and never fail the call.
func (s *Service) GenerateTranscript(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.ChannelID == "" {
		return nil, fmt.Errorf("%w: channelId is required", domain.ErrInputInvalid)
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no message fetcher", domain.ErrConfigurationMissing)
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}

	messages, channel, err := s.fetcher.Fetch(ctx, req.ChannelID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if channel.GuildID == "" {
		channel.GuildID = req.GuildID
	}

	doc := s.renderer.Render(messages, channel)
	name := storage.UniqueName(generatedPrefix, ".html")
	sf, err := s.transcripts.Put(ctx, name, transcriptContentType, bytes.NewReader(doc.HTML))
	if err != nil {
		return nil, fmt.Errorf("store transcript: %w", err)
	}

	rec := domain.TranscriptRecord{
		ID:           uuid.NewString(),
		Filename:     sf.Name,
		URL:          s.transcriptURL(sf.Name),
		TicketID:     req.TicketID,
		ChannelID:    channel.ID,
		GuildID:      channel.GuildID,
		UserID:       req.UserID,
		Username:     req.Username,
		ClosedBy:     req.ClosedBy,
		MessageCount: doc.MessageCount,
		Size:         sf.Size,
		UploadedAt:   s.now().UTC(),
	}
	if err := s.indexTranscript(ctx, rec); err != nil {
		return nil, err
	}
	metrics.TranscriptsGenerated.Inc()
	metrics.UploadBytes.Add(sf.Size)

	s.logger.Info("transcript generated",
		"channel_id", channel.ID,
		"filename", rec.Filename,
		"messages", rec.MessageCount,
		"size", rec.Size,
	)
	s.notify(ctx, rec)

	return &GenerateResult{
		ID:           rec.ID,
		Filename:     rec.Filename,
		URL:          rec.URL,
		Size:         rec.Size,
		MessageCount: rec.MessageCount,
		UploadedAt:   rec.UploadedAt,
	}, nil
}

// UploadRequest carries a pre-rendered transcript and its ticket metadata.
type UploadRequest struct {
	Reader     io.Reader
	TicketID   string
	Username   string
	TicketType string
	Inquiry    string
	OpenedAt   string
	ClosedAt   string
}

// UploadTranscript stores an already rendered transcript and indexes it.
func (s *Service) UploadTranscript(ctx context.Context, req UploadRequest) (*domain.TranscriptRecord, error) {
	if req.Reader == nil {
		return nil, fmt.Errorf("%w: no transcript uploaded", domain.ErrInputInvalid)
	}
	name := storage.UniqueName(uploadedPrefix, ".html")
	sf, err := s.transcripts.Put(ctx, name, transcriptContentType, req.Reader)
	if err != nil {
		return nil, fmt.Errorf("store transcript: %w", err)
	}

	rec := domain.TranscriptRecord{
		ID:         uuid.NewString(),
		Filename:   sf.Name,
		URL:        s.transcriptURL(sf.Name),
		TicketID:   req.TicketID,
		Username:   req.Username,
		TicketType: req.TicketType,
		Inquiry:    req.Inquiry,
		OpenedAt:   req.OpenedAt,
		ClosedAt:   req.ClosedAt,
		Size:       sf.Size,
		UploadedAt: s.now().UTC(),
	}
	if err := s.indexTranscript(ctx, rec); err != nil {
		return nil, err
	}
	metrics.TranscriptsUploaded.Inc()
	metrics.UploadBytes.Add(sf.Size)

	s.logger.Info("transcript uploaded", "filename", rec.Filename, "ticket_id", rec.TicketID, "size", rec.Size)
	s.notify(ctx, rec)
	return &rec, nil
}

// FileInfo describes an accepted upload.
type FileInfo struct {
	OriginalName string    `json:"originalName"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	Path         string    `json:"path"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// UploadFile stores a general upload after checking its content type.
// The stored name keeps only the original extension.
func (s *Service) UploadFile(ctx context.Context, originalName, contentType string, r io.Reader) (*FileInfo, error) {
	if err := storage.CheckType(contentType, s.allowedTypes); err != nil {
		return nil, err
	}
	name := storage.UniqueName(filePrefix, strings.ToLower(filepath.Ext(originalName)))
	sf, err := s.files.Put(ctx, name, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	metrics.UploadsTotal.Inc()
	metrics.UploadBytes.Add(sf.Size)

	return &FileInfo{
		OriginalName: originalName,
		Filename:     sf.Name,
		MimeType:     contentType,
		Size:         sf.Size,
		Path:         "/uploads/" + sf.Name,
		UploadedAt:   s.now().UTC(),
	}, nil
}

// ListedFile is one entry of ListFiles.
type ListedFile struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (s *Service) ListFiles(ctx context.Context) ([]ListedFile, error) {
	stored, err := s.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	metrics.StoredFiles.Set(int64(len(stored)))
	files := make([]ListedFile, 0, len(stored))
	for _, f := range stored {
		files = append(files, ListedFile{
			Filename:   f.Name,
			Path:       "/uploads/" + f.Name,
			Size:       f.Size,
			UploadedAt: f.ModTime,
		})
	}
	return files, nil
}

// ListTranscripts returns indexed transcripts, oldest first.
func (s *Service) ListTranscripts(ctx context.Context) ([]domain.TranscriptRecord, error) {
	records, err := s.index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	if records == nil {
		records = []domain.TranscriptRecord{}
	}
	return records, nil
}

func (s *Service) GetTranscript(ctx context.Context, id string) (*domain.TranscriptRecord, error) {
	return s.index.Get(ctx, id)
}

// OpenFile returns a stored upload for download.
func (s *Service) OpenFile(ctx context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error) {
	return s.files.Open(ctx, name)
}

// OpenTranscript returns a stored transcript for download.
func (s *Service) OpenTranscript(ctx context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error) {
	if name == storage.MetadataFile {
		return nil, domain.StoredFile{}, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return s.transcripts.Open(ctx, name)
}

// indexTranscript records rec, removing the stored blob when the index
// rejects it so no unlisted transcript stays published.
func (s *Service) indexTranscript(ctx context.Context, rec domain.TranscriptRecord) error {
	err := s.index.Append(ctx, rec)
	if err == nil {
		return nil
	}
	if derr := s.transcripts.Delete(ctx, rec.Filename); derr != nil {
		s.logger.Warn("remove unindexed transcript", "filename", rec.Filename, "err", derr)
	}
	return fmt.Errorf("index transcript: %w", err)
}

func (s *Service) transcriptURL(name string) string {
	return s.baseURL + "/transcripts/" + name
}

func (s *Service) notify(ctx context.Context, rec domain.TranscriptRecord) {
	for _, n := range s.notifiers {
		if err := n.NotifyTranscript(ctx, rec); err != nil {
			metrics.NotifyFailures.Inc()
			s.logger.Warn("transcript notification failed", "notifier", n.Name(), "filename", rec.Filename, "err", err)
		}
	}
}
