package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyEnv overrides config values from the environment variables the
// service has always honoured. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []string
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PORT: %q is not a number", v))
		} else {
			cfg.Server.Port = port
		}
	}
	if v, ok := get("MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("MAX_FILE_SIZE: %q is not a number", v))
		} else {
			cfg.Upload.MaxFileSize = n
		}
	}
	if v, ok := get("ALLOWED_FILE_TYPES"); ok {
		cfg.Upload.AllowedTypes = SplitList(v)
	}
	if v, ok := get("DISCORD_TOKEN"); ok {
		cfg.Discord.Token = v
	}
	if v, ok := get("PUBLIC_BASE_URL"); ok {
		cfg.Server.PublicBaseURL = v
	}

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
