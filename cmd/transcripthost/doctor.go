package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"transcripthost/internal/config"
	"transcripthost/internal/export"
	"transcripthost/internal/index"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the installation",
		Long: `Verifies that the configuration, storage directories, transcript index,
Discord token and optional integrations are correctly set up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Transcript Host Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed, warned, failed := 0, 0, 0

			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s (using defaults)", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			cfg, err := config.LoadOptional(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d warnings, %d failed\n", passed, warned, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			for _, dir := range []struct{ name, path string }{
				{"Uploads dir", cfg.Storage.UploadsDir},
				{"Transcripts dir", cfg.Storage.TranscriptsDir},
			} {
				if err := checkWritableDir(dir.path); err != nil {
					printFail(dir.name, err.Error())
					failed++
				} else {
					printPass(dir.name, dir.path)
					passed++
				}
			}

			switch cfg.Index.Backend {
			case "sqlite":
				if err := checkDatabase(cfg.Index.DBPath); err != nil {
					printFail("Index (sqlite)", err.Error())
					failed++
				} else {
					printPass("Index (sqlite)", cfg.Index.DBPath)
					passed++
				}
			case "none":
				printWarn("Index", "disabled; transcripts will not be listed")
				warned++
			default:
				printPass("Index (json)", cfg.MetadataPath())
				passed++
			}

			if cfg.Discord.Token == "" {
				printWarn("Discord token", "not set; generate will fail (set DISCORD_TOKEN)")
				warned++
			} else {
				printPass("Discord token", "configured")
				passed++
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				printWarn("HTTP port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("HTTP port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			if cfg.Server.Auth.Enabled {
				printPass("Basic auth", "enabled for "+cfg.Server.Auth.Username)
				passed++
			} else {
				printWarn("Basic auth", "disabled; uploads are open to anyone who can reach the server")
				warned++
			}

			if cfg.Notify.Telegram.Enabled {
				printPass("Telegram notify", fmt.Sprintf("chat %d", cfg.Notify.Telegram.ChatID))
				passed++
			}
			if cfg.Notify.Slack.Enabled {
				printPass("Slack notify", "webhook configured")
				passed++
			}

			chrome := cfg.Export.ChromePath
			if chrome == "" {
				chrome = export.FindChrome()
			}
			if _, err := os.Stat(chrome); chrome == "" || err != nil {
				printWarn("Chrome", "not found; export-pdf unavailable")
				warned++
			} else {
				printPass("Chrome", chrome)
				passed++
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running the server.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nThe server should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed.\n")
			}
			return nil
		},
	}
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// checkDatabase opens the index through the normal path so migrations run.
func checkDatabase(dbPath string) error {
	idx, err := index.NewSQLite(dbPath, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := idx.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	v, err := index.GetSchemaVersion(idx.DB())
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	if v < 1 {
		return fmt.Errorf("schema not migrated (version %d)", v)
	}
	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
