package main

import (
	"fmt"
	"log/slog"
	"os"

	"transcripthost/internal/config"
	"transcripthost/internal/logging"

	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	logger     = slog.Default()
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:          "transcripthost",
		Short:        "Transcript Host: render and serve Discord channel transcripts",
		Long:         "Transcript Host fetches Discord channel history, renders it to standalone HTML and serves uploads and transcripts over HTTP.",
		SilenceUsage: true,
		Version:      version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json or config.yaml (default: ~/.transcripthost/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(generateCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(exportPDFCmd())
	root.AddCommand(filesCmd())
	root.AddCommand(transcriptsCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config (defaults when the file is missing) and
// replaces the global logger with the configured one.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.LoadOptional(resolveConfigPath())
	if err != nil {
		return nil, nil, err
	}
	l, closeLog, err := logging.New(logging.Options{
		Level:  cfg.General.LogLevel,
		Format: cfg.General.LogFormat,
		File:   cfg.General.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}
	logger = l
	return cfg, func() { _ = closeLog() }, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create storage directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			for _, dir := range []string{cfg.Storage.UploadsDir, cfg.Storage.TranscriptsDir} {
				if err := os.MkdirAll(config.ExpandPath(dir), 0o755); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath,
				"uploads", cfg.Storage.UploadsDir, "transcripts", cfg.Storage.TranscriptsDir)
			return nil
		},
	}
}
