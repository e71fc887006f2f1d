package main

import (
	"errors"
	"fmt"
	"time"

	"transcripthost/internal/config"
	"transcripthost/internal/discord"
	"transcripthost/internal/domain"
	"transcripthost/internal/index"
	"transcripthost/internal/notify"
	"transcripthost/internal/service"
	"transcripthost/internal/storage"
	"transcripthost/internal/transcript"
)

// app holds the wired collaborators shared by serve and the offline commands.
type app struct {
	cfg         *config.Config
	files       *storage.Disk
	transcripts *storage.Disk
	index       domain.TranscriptIndex
	renderer    *transcript.Renderer
	live        *notify.Live // nil unless notify.live.enabled
	svc         *service.Service
}

func newApp(cfg *config.Config) (*app, error) {
	files, err := storage.NewDisk(storage.DiskConfig{
		Dir:          cfg.Storage.UploadsDir,
		MaxSizeBytes: cfg.Upload.MaxFileSize,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("uploads store: %w", err)
	}
	transcripts, err := storage.NewDisk(storage.DiskConfig{
		Dir:          cfg.Storage.TranscriptsDir,
		MaxSizeBytes: cfg.Upload.MaxFileSize,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("transcripts store: %w", err)
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		idx.Close()
		return nil, err
	}
	var live *notify.Live
	if cfg.Notify.Live.Enabled {
		live = notify.NewLive(notify.LiveConfig{AllowedOrigins: cfg.Server.CORSOrigins, Logger: logger})
		notifiers = append(notifiers, live)
	}

	renderer := transcript.NewRenderer(transcript.RendererConfig{
		Location:    cfg.Location(),
		ProductName: cfg.Transcripts.ProductName,
		Logger:      logger,
	})
	fetcher := discord.NewFetcher(discord.FetcherConfig{
		Token:   cfg.Discord.Token,
		Timeout: time.Duration(cfg.Discord.TimeoutSeconds) * time.Second,
		Logger:  logger,

		RequestsPerMinute: cfg.Discord.RequestsPerMinute,
		Burst:             cfg.Discord.Burst,
	})

	svc := service.New(service.Config{
		Fetcher:       fetcher,
		Renderer:      renderer,
		Files:         files,
		Transcripts:   transcripts,
		Index:         idx,
		Notifiers:     notifiers,
		AllowedTypes:  cfg.Upload.AllowedTypes,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		DefaultLimit:  cfg.Transcripts.DefaultLimit,
		Logger:        logger,
	})

	return &app{
		cfg:         cfg,
		files:       files,
		transcripts: transcripts,
		index:       idx,
		renderer:    renderer,
		live:        live,
		svc:         svc,
	}, nil
}

func (a *app) Close() error {
	if a.live != nil {
		a.live.Close()
	}
	return a.index.Close()
}

func openIndex(cfg *config.Config) (domain.TranscriptIndex, error) {
	switch cfg.Index.Backend {
	case "sqlite":
		idx, err := index.NewSQLite(cfg.Index.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite index: %w", err)
		}
		return idx, nil
	case "none":
		return index.Nop, nil
	default:
		return index.NewJSONFile(cfg.MetadataPath()), nil
	}
}

func buildNotifiers(cfg *config.Config) ([]domain.Notifier, error) {
	var out []domain.Notifier
	var errs []error

	if tc := cfg.Notify.Telegram; tc.Enabled {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:   tc.Token,
			ChatID:  tc.ChatID,
			BaseURL: cfg.Server.PublicBaseURL,
			Logger:  logger,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram notifier: %w", err))
		} else {
			out = append(out, tg)
		}
	}
	if sc := cfg.Notify.Slack; sc.Enabled {
		sl, err := notify.NewSlack(notify.SlackConfig{
			WebhookURL: sc.WebhookURL,
			BaseURL:    cfg.Server.PublicBaseURL,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("slack notifier: %w", err))
		} else {
			out = append(out, sl)
		}
	}
	return out, errors.Join(errs...)
}
