// Package discord retrieves channel history from the Discord REST API and
// normalizes it into domain messages.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/metrics"

	"github.com/bwmarrin/discordgo"
)

const (
	// MaxMessageLimit is the most messages Discord returns for one history page.
	MaxMessageLimit = 100

	defaultTimeout = 30 * time.Second

	// UnknownChannelName is used when the upstream channel has no name.
	UnknownChannelName = "unknown-channel"
)

// FetcherConfig configures a Fetcher. It is built from config.DiscordConfig by the caller.
type FetcherConfig struct {
	Token      string
	HTTPClient *http.Client // optional; a pooled client is created when nil
	Timeout    time.Duration
	Logger     *slog.Logger

	// RequestsPerMinute throttles upstream calls; zero disables throttling.
	RequestsPerMinute float64
	Burst             int
}

// Fetcher pulls recent messages and channel metadata for a channel.
type Fetcher struct {
	token   string
	client  *http.Client
	timeout time.Duration
	limiter *rateLimiter
	logger  *slog.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Fetcher{
		token:   strings.TrimSpace(cfg.Token),
		client:  cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	if cfg.RequestsPerMinute > 0 {
		f.limiter = newRateLimiter(cfg.Burst, cfg.RequestsPerMinute)
	}
	return f
}

// Fetch returns up to limit of the most recent messages in channelID, oldest
// first, together with the channel's metadata. The two upstream calls run in
// sequence and are never retried.
func (f *Fetcher) Fetch(ctx context.Context, channelID string, limit int) ([]domain.Message, domain.ChannelContext, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, domain.ChannelContext{}, fmt.Errorf("%w: channelId is required", domain.ErrInputInvalid)
	}
	if limit < 1 || limit > MaxMessageLimit {
		return nil, domain.ChannelContext{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInputInvalid, MaxMessageLimit)
	}
	if f.token == "" {
		return nil, domain.ChannelContext{}, domain.ErrConfigurationMissing
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	session, err := f.session()
	if err != nil {
		return nil, domain.ChannelContext{}, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, domain.ChannelContext{}, err
	}
	start := time.Now()
	raw, err := session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		metrics.UpstreamErrors.Inc()
		return nil, domain.ChannelContext{}, fmt.Errorf("fetch messages: %w", mapError(err))
	}
	messages, err := convertMessages(raw)
	if err != nil {
		return nil, domain.ChannelContext{}, err
	}
	SortChronological(messages)

	f.logger.Info("discord messages fetched",
		"channel_id", channelID,
		"requested", limit,
		"count", len(messages),
		"duration", time.Since(start),
	)

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, domain.ChannelContext{}, err
	}
	ch, err := session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		metrics.UpstreamErrors.Inc()
		return nil, domain.ChannelContext{}, fmt.Errorf("fetch channel: %w", mapError(err))
	}
	metrics.FetchLatency.Observe(time.Since(start).Seconds())

	return messages, channelContext(channelID, ch), nil
}

// session builds a REST-only discordgo session. No gateway connection is opened.
func (f *Fetcher) session() (*discordgo.Session, error) {
	s, err := discordgo.New(authorization(f.token))
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Client = f.client
	s.MaxRestRetries = 0
	s.ShouldRetryOnRateLimit = false
	return s, nil
}

func authorization(token string) string {
	if strings.HasPrefix(token, "Bot ") || strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bot " + token
}

// SortChronological orders messages oldest first. Messages with equal
// timestamps keep their relative order.
func SortChronological(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}

func channelContext(channelID string, ch *discordgo.Channel) domain.ChannelContext {
	cc := domain.ChannelContext{ID: channelID, Name: UnknownChannelName}
	if ch == nil {
		return cc
	}
	if ch.ID != "" {
		cc.ID = ch.ID
	}
	if ch.Name != "" {
		cc.Name = ch.Name
	}
	cc.GuildID = ch.GuildID
	return cc
}

// mapError translates discordgo errors into the domain taxonomy.
func mapError(err error) error {
	var restErr *discordgo.RESTError
	var rateErr *discordgo.RateLimitError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &restErr):
		ue := &domain.UpstreamError{Status: http.StatusBadGateway}
		if restErr.Response != nil {
			ue.Status = restErr.Response.StatusCode
		}
		if restErr.Message != nil && restErr.Message.Message != "" {
			ue.Message = restErr.Message.Message
		} else {
			ue.Message = strings.TrimSpace(string(restErr.ResponseBody))
		}
		return ue
	case errors.As(err, &rateErr):
		return &domain.UpstreamError{Status: http.StatusTooManyRequests, Message: rateErr.Error()}
	case errors.Is(err, discordgo.ErrJSONUnmarshal):
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	default:
		return &domain.UpstreamError{Status: http.StatusBadGateway, Message: err.Error()}
	}
}
