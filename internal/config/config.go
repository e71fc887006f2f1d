package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the transcript host.
type Config struct {
	General     GeneralConfig     `json:"general" yaml:"general"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Upload      UploadConfig      `json:"upload" yaml:"upload"`
	Transcripts TranscriptsConfig `json:"transcripts" yaml:"transcripts"`
	Discord     DiscordConfig     `json:"discord" yaml:"discord"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Index       IndexConfig       `json:"index" yaml:"index"`
	Notify      NotifyConfig      `json:"notify" yaml:"notify"`
	Export      ExportConfig      `json:"export" yaml:"export"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	DataDir   string `json:"dataDir" yaml:"dataDir"`
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"` // "text" | "json" | "tint"
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	SentryDSN string `json:"sentryDsn,omitempty" yaml:"sentryDsn,omitempty"`
}

type ServerConfig struct {
	Host           string         `json:"host" yaml:"host"`
	Port           int            `json:"port" yaml:"port"`
	PublicBaseURL  string         `json:"publicBaseUrl,omitempty" yaml:"publicBaseUrl,omitempty"`
	CORSOrigins    FlexStringList `json:"corsOrigins" yaml:"corsOrigins"`
	Auth           AuthConfig     `json:"auth" yaml:"auth"`
	GenerateSecret string         `json:"generateSecret,omitempty" yaml:"generateSecret,omitempty"` // HMAC secret for the generate endpoint
}

// AuthConfig guards the write endpoints. PasswordHash is bcrypt or hex SHA-256.
type AuthConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"passwordHash" yaml:"passwordHash"`
}

type UploadConfig struct {
	MaxFileSize  int64          `json:"maxFileSize" yaml:"maxFileSize"`
	AllowedTypes FlexStringList `json:"allowedTypes" yaml:"allowedTypes"`
}

type TranscriptsConfig struct {
	DefaultLimit int    `json:"defaultLimit" yaml:"defaultLimit"`
	Timezone     string `json:"timezone" yaml:"timezone"` // IANA name used for printed timestamps
	ProductName  string `json:"productName" yaml:"productName"`
}

type DiscordConfig struct {
	Token          string `json:"token" yaml:"token"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`

	// Upstream throttling; requestsPerMinute 0 disables it.
	RequestsPerMinute float64 `json:"requestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int     `json:"burst" yaml:"burst"`
}

type StorageConfig struct {
	UploadsDir     string `json:"uploadsDir" yaml:"uploadsDir"`
	TranscriptsDir string `json:"transcriptsDir" yaml:"transcriptsDir"`
}

type IndexConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "json" | "sqlite" | "none"
	DBPath  string `json:"dbPath" yaml:"dbPath"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Slack    SlackConfig    `json:"slack" yaml:"slack"`
	Live     LiveConfig     `json:"live" yaml:"live"`
}

// LiveConfig enables the /api/events websocket feed of new transcripts.
type LiveConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token" yaml:"token"`
	ChatID  int64  `json:"chatId" yaml:"chatId"`
}

type SlackConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	WebhookURL string `json:"webhookUrl" yaml:"webhookUrl"`
}

type ExportConfig struct {
	ChromePath     string `json:"chromePath,omitempty" yaml:"chromePath,omitempty"`
	Headless       bool   `json:"headless" yaml:"headless"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// FlexStringList is a []string that also accepts a comma-separated string and
// numbers inside arrays (["a", 1] becomes "a", "1").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = SplitList(s)
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

func (f *FlexStringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*f = SplitList(node.Value)
		return nil
	case yaml.SequenceNode:
		result := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be scalars", item.Line)
			}
			result = append(result, item.Value)
		}
		*f = result
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list", node.Line)
	}
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultConfigDir returns the default config directory (~/.transcripthost).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".transcripthost"
	}
	return filepath.Join(home, ".transcripthost")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads a JSON or YAML (by extension) config file over the defaults,
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := parseFile(path, true)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadFile parses the file as written: no ${VAR} substitution, environment
// overrides or path expansion. Used when editing and saving the file back.
func LoadFile(path string) (*Config, error) {
	return parseFile(path, false)
}

func parseFile(path string, expandEnv bool) (*Config, error) {
	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	if expandEnv {
		data = []byte(ExpandEnvVars(string(data)))
	}

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional behaves like Load but falls back to defaults plus environment
// when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	return finish(Defaults())
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Storage.UploadsDir = ExpandPath(cfg.Storage.UploadsDir)
	cfg.Storage.TranscriptsDir = ExpandPath(cfg.Storage.TranscriptsDir)
	cfg.Index.DBPath = ExpandPath(cfg.Index.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""
		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json", "tint":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json, tint")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.Auth.Enabled && (cfg.Server.Auth.Username == "" || cfg.Server.Auth.PasswordHash == "") {
		errs = append(errs, "server.auth requires username and passwordHash when enabled")
	}

	if cfg.Upload.MaxFileSize < 1 {
		errs = append(errs, "upload.maxFileSize must be >= 1")
	}

	if cfg.Transcripts.DefaultLimit < 1 || cfg.Transcripts.DefaultLimit > 100 {
		errs = append(errs, "transcripts.defaultLimit must be between 1 and 100")
	}
	if _, err := time.LoadLocation(cfg.Transcripts.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("transcripts.timezone: unknown time zone %q", cfg.Transcripts.Timezone))
	}
	if cfg.Discord.TimeoutSeconds < 1 {
		errs = append(errs, "discord.timeoutSeconds must be >= 1")
	}
	if cfg.Discord.RequestsPerMinute < 0 {
		errs = append(errs, "discord.requestsPerMinute must be >= 0")
	}

	if cfg.Storage.UploadsDir == "" || cfg.Storage.TranscriptsDir == "" {
		errs = append(errs, "storage.uploadsDir and storage.transcriptsDir are required")
	}
	switch cfg.Index.Backend {
	case "json", "none":
	case "sqlite":
		if cfg.Index.DBPath == "" {
			errs = append(errs, "index.dbPath is required for the sqlite backend")
		}
	default:
		errs = append(errs, "index.backend must be one of: json, sqlite, none")
	}

	if cfg.Notify.Telegram.Enabled && (cfg.Notify.Telegram.Token == "" || cfg.Notify.Telegram.ChatID == 0) {
		errs = append(errs, "notify.telegram requires token and chatId when enabled")
	}
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.WebhookURL == "" {
		errs = append(errs, "notify.slack requires webhookUrl when enabled")
	}
	if cfg.Export.TimeoutSeconds < 1 {
		errs = append(errs, "export.timeoutSeconds must be >= 1")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Location returns the configured time zone (UTC when unset or invalid).
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Transcripts.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MetadataPath is the JSON index file kept next to transcripts.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Storage.TranscriptsDir, "metadata.json")
}
