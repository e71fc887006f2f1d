package config

// Default upload limits match the historical MAX_FILE_SIZE and
// ALLOWED_FILE_TYPES defaults.
const (
	DefaultMaxFileSize = 10485760
	DefaultPort        = 3000
)

func DefaultAllowedTypes() []string {
	return []string{"image/jpeg", "image/png", "application/pdf", "text/plain"}
}

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:   "~/.transcripthost",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        DefaultPort,
			CORSOrigins: FlexStringList{"*"},
		},
		Upload: UploadConfig{
			MaxFileSize:  DefaultMaxFileSize,
			AllowedTypes: DefaultAllowedTypes(),
		},
		Transcripts: TranscriptsConfig{
			DefaultLimit: 100,
			Timezone:     "UTC",
			ProductName:  "Transcript Host",
		},
		Discord: DiscordConfig{
			TimeoutSeconds:    30,
			RequestsPerMinute: 120,
			Burst:             5,
		},
		Storage: StorageConfig{
			UploadsDir:     "~/.transcripthost/uploads",
			TranscriptsDir: "~/.transcripthost/transcripts",
		},
		Index: IndexConfig{
			Backend: "json",
			DBPath:  "~/.transcripthost/transcripts.db",
		},
		Export: ExportConfig{
			Headless:       true,
			TimeoutSeconds: 60,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
