package transcript

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/metrics"

	"github.com/bwmarrin/discordgo"
)

// TimestampLayout is how message and generation times are printed.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

const defaultProductName = "Transcript Host"

//go:embed templates/transcript.html
var templateFS embed.FS

var pageTemplate = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/transcript.html"))

// RendererConfig configures a Renderer. Zero values fall back to defaults.
type RendererConfig struct {
	Now         func() time.Time
	Location    *time.Location
	ProductName string
	Logger      *slog.Logger
}

// Renderer produces transcript documents. It holds no per-call state.
type Renderer struct {
	now         func() time.Time
	loc         *time.Location
	productName string
	logger      *slog.Logger
}

func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ProductName == "" {
		cfg.ProductName = defaultProductName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		now:         cfg.Now,
		loc:         cfg.Location,
		productName: cfg.ProductName,
		logger:      cfg.Logger,
	}
}

type pageData struct {
	Channel      domain.ChannelContext
	Messages     []messageView
	MessageCount int
	GeneratedAt  string
	ProductName  string
}

type messageView struct {
	AvatarURL   string
	Author      string
	Bot         bool
	Timestamp   string
	Content     htmltemplate.HTML
	Attachments []attachmentView
	Embeds      []embedView
}

type attachmentView struct {
	URL      string
	Filename string
	Image    bool
}

type embedView struct {
	Title       string
	Description htmltemplate.HTML
}

// Render builds the HTML document for messages, which must already be in
// chronological order. Absent optional fields render as empty output.
func (r *Renderer) Render(messages []domain.Message, channel domain.ChannelContext) domain.TranscriptDocument {
	start := time.Now()
	generatedAt := r.now()

	data := pageData{
		Channel:      channel,
		Messages:     make([]messageView, 0, len(messages)),
		MessageCount: len(messages),
		GeneratedAt:  generatedAt.In(r.loc).Format(TimestampLayout),
		ProductName:  r.productName,
	}
	for _, m := range messages {
		data.Messages = append(data.Messages, r.messageView(m))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		r.logger.Error("transcript template failed", "channel_id", channel.ID, "err", err)
		buf.Reset()
	}
	metrics.RenderLatency.Observe(time.Since(start).Seconds())

	return domain.TranscriptDocument{
		HTML:         buf.Bytes(),
		MessageCount: len(messages),
		GeneratedAt:  generatedAt,
	}
}

func (r *Renderer) messageView(m domain.Message) messageView {
	v := messageView{
		AvatarURL: AvatarURL(m.Author),
		Author:    m.Author.DisplayName(),
		Bot:       m.Author.Bot,
		Content:   htmltemplate.HTML(Format(m.Content)),
	}
	if !m.Timestamp.IsZero() {
		v.Timestamp = m.Timestamp.In(r.loc).Format(TimestampLayout)
	}
	for _, a := range m.Attachments {
		v.Attachments = append(v.Attachments, attachmentView{
			URL:      a.URL,
			Filename: a.Filename,
			Image:    strings.HasPrefix(a.ContentType, "image/"),
		})
	}
	for _, e := range m.Embeds {
		ev := embedView{Title: e.Title}
		if e.Description != "" {
			ev.Description = htmltemplate.HTML(Format(e.Description))
		}
		v.Embeds = append(v.Embeds, ev)
	}
	return v
}

// DefaultAvatarURL is shown for authors without a custom avatar.
var DefaultAvatarURL = discordgo.EndpointCDN + "embed/avatars/0.png"

// AvatarURL returns the CDN URL of the author's avatar.
func AvatarURL(a domain.Author) string {
	if a.ID == "" || a.Avatar == "" {
		return DefaultAvatarURL
	}
	return discordgo.EndpointUserAvatar(a.ID, a.Avatar)
}
