package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"transcripthost/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var knownNotifiers = []struct {
	ID   string
	Desc string
}{{"none", "No notifications"}, {"telegram", "Telegram bot message"}, {"slack", "Slack incoming webhook"}}

var knownIndexes = []struct {
	ID   string
	Desc string
}{{"json", "metadata.json next to the transcripts"}, {"sqlite", "SQLite database"}, {"none", "Do not index transcripts"}}

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: storage → server → Discord → auth → notifications → save config",
		Long:  "Guides you through storage paths, the listen port and public URL, the Discord bot token, basic auth, notifications and the transcript index. Writes config to the path used by --config or default.",
		RunE:  runWizard,
	}
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(os.Stdin)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(os.Stdout, " [%s]: ", def)
		} else {
			fmt.Fprint(os.Stdout, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" && def != "" {
			return def, nil
		}
		return s, nil
	}
	choose := func(n int, def string) (int, error) {
		choice, err := prompt(def)
		if err != nil {
			return 0, err
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > n {
			idx, _ = strconv.Atoi(def)
		}
		return idx - 1, nil
	}

	// Step 1: Storage
	fmt.Println("\n--- Step 1: Storage ---")
	fmt.Fprint(os.Stdout, "Directory for uploaded files")
	if cfg.Storage.UploadsDir, err = prompt(cfg.Storage.UploadsDir); err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, "Directory for transcripts")
	if cfg.Storage.TranscriptsDir, err = prompt(cfg.Storage.TranscriptsDir); err != nil {
		return err
	}
	for _, dir := range []string{cfg.Storage.UploadsDir, cfg.Storage.TranscriptsDir} {
		if err := os.MkdirAll(config.ExpandPath(dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// Step 2: Server
	fmt.Println("\n--- Step 2: HTTP server ---")
	fmt.Fprint(os.Stdout, "Port")
	portStr, err := prompt(strconv.Itoa(cfg.Server.Port))
	if err != nil {
		return err
	}
	if port, err := strconv.Atoi(portStr); err == nil {
		cfg.Server.Port = port
	}
	fmt.Fprint(os.Stdout, "Public base URL for transcript links (blank for relative links)")
	if cfg.Server.PublicBaseURL, err = prompt(cfg.Server.PublicBaseURL); err != nil {
		return err
	}

	// Step 3: Discord
	fmt.Println("\n--- Step 3: Discord ---")
	fmt.Fprint(os.Stdout, "Bot token: paste token or env var (e.g. ${DISCORD_TOKEN})")
	tok, err := prompt("${DISCORD_TOKEN}")
	if err != nil {
		return err
	}
	cfg.Discord.Token = tok

	// Step 4: Auth
	fmt.Println("\n--- Step 4: Basic auth for uploads ---")
	fmt.Fprint(os.Stdout, "Username (blank to leave uploads open)")
	user, err := prompt(cfg.Server.Auth.Username)
	if err != nil {
		return err
	}
	if user != "" {
		fmt.Fprint(os.Stdout, "Password")
		pass, err := prompt("")
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		cfg.Server.Auth = config.AuthConfig{Enabled: true, Username: user, PasswordHash: string(hash)}
	} else {
		cfg.Server.Auth.Enabled = false
	}

	// Step 5: Notifications
	fmt.Println("\n--- Step 5: Notifications ---")
	for i, n := range knownNotifiers {
		fmt.Fprintf(os.Stdout, "  %d) %s: %s\n", i+1, n.ID, n.Desc)
	}
	fmt.Fprint(os.Stdout, "Choose notifier (1-3)")
	nIdx, err := choose(len(knownNotifiers), "1")
	if err != nil {
		return err
	}
	cfg.Notify.Telegram.Enabled = false
	cfg.Notify.Slack.Enabled = false
	switch knownNotifiers[nIdx].ID {
	case "telegram":
		fmt.Fprint(os.Stdout, "Telegram bot token (from @BotFather)")
		if cfg.Notify.Telegram.Token, err = prompt(cfg.Notify.Telegram.Token); err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, "Chat ID")
		chat, err := prompt(strconv.FormatInt(cfg.Notify.Telegram.ChatID, 10))
		if err != nil {
			return err
		}
		cfg.Notify.Telegram.ChatID, _ = strconv.ParseInt(chat, 10, 64)
		cfg.Notify.Telegram.Enabled = true
	case "slack":
		fmt.Fprint(os.Stdout, "Slack webhook URL")
		if cfg.Notify.Slack.WebhookURL, err = prompt(cfg.Notify.Slack.WebhookURL); err != nil {
			return err
		}
		cfg.Notify.Slack.Enabled = true
	}

	// Step 6: Index
	fmt.Println("\n--- Step 6: Transcript index ---")
	for i, n := range knownIndexes {
		fmt.Fprintf(os.Stdout, "  %d) %s: %s\n", i+1, n.ID, n.Desc)
	}
	fmt.Fprint(os.Stdout, "Choose index (1-3)")
	iIdx, err := choose(len(knownIndexes), "1")
	if err != nil {
		return err
	}
	cfg.Index.Backend = knownIndexes[iIdx].ID

	// Save
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nConfig saved to %s\n", cfgPath)
	fmt.Println("Next: run 'transcripthost doctor', then 'transcripthost serve'.")
	return nil
}
