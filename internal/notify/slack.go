package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"transcripthost/internal/domain"

	"github.com/slack-go/slack"
)

// SlackConfig configures the Slack incoming-webhook notifier.
type SlackConfig struct {
	WebhookURL string
	BaseURL    string
	HTTPClient *http.Client
}

type Slack struct {
	webhookURL string
	baseURL    string
	client     *http.Client
}

func NewSlack(cfg SlackConfig) (*Slack, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("%w: slack webhook url", domain.ErrConfigurationMissing)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Slack{webhookURL: cfg.WebhookURL, baseURL: cfg.BaseURL, client: cfg.HTTPClient}, nil
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) NotifyTranscript(ctx context.Context, rec domain.TranscriptRecord) error {
	msg := &slack.WebhookMessage{Text: FormatTranscriptNotice(rec, s.baseURL)}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
