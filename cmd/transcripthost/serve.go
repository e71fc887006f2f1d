package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"transcripthost/internal/logging"
	"transcripthost/internal/server"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Serves file uploads, transcript uploads, transcript generation and the stored files. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	flush, err := logging.InitSentry(cfg.General.SentryDSN, "transcripthost@"+version)
	if err != nil {
		logger.Warn("error reporting disabled", "err", err)
	}
	defer flush()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Discord.Token == "" {
		logger.Warn("discord token not configured; transcript generation will fail until it is set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events http.Handler
	if a.live != nil {
		events = a.live
	}

	srv := server.New(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Backend:     a.svc,
		Logger:      logger,
		Version:     version,
		CORSOrigins: cfg.Server.CORSOrigins,
		Auth: server.AuthConfig{
			Enabled:      cfg.Server.Auth.Enabled,
			Username:     cfg.Server.Auth.Username,
			PasswordHash: cfg.Server.Auth.PasswordHash,
		},
		GenerateSecret: cfg.Server.GenerateSecret,
		MaxUploadBytes: cfg.Upload.MaxFileSize,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Endpoint,
		Events:         events,
	})

	logger.Info("storage",
		"uploads", a.files.Dir(),
		"transcripts", a.transcripts.Dir(),
		"index", cfg.Index.Backend,
	)
	return srv.Start(ctx)
}
