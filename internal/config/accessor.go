package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Paths use the JSON field names joined by dots, e.g. "server.port" or
// "upload.allowedTypes.0".

// asTree returns cfg as generic JSON values.
func asTree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// step descends one path segment into node.
func step(node any, key string) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		child, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
		return child, nil
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(v) {
			return nil, fmt.Errorf("invalid list index %q", key)
		}
		return v[i], nil
	default:
		return nil, fmt.Errorf("%q is not a section", key)
	}
}

// GetByPath returns the value at path.
func GetByPath(cfg *Config, path string) (any, error) {
	tree, err := asTree(cfg)
	if err != nil {
		return nil, err
	}
	var node any = tree
	for _, key := range strings.Split(path, ".") {
		if node, err = step(node, key); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return node, nil
}

// SetByPath assigns value at an existing path. String values are converted
// to the type of the value they replace.
func SetByPath(cfg *Config, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	tree, err := asTree(cfg)
	if err != nil {
		return err
	}

	keys := strings.Split(path, ".")
	var parent any = tree
	for _, key := range keys[:len(keys)-1] {
		if parent, err = step(parent, key); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	last := keys[len(keys)-1]
	switch p := parent.(type) {
	case map[string]any:
		current, ok := p[last]
		if !ok && !optionalKey(last) {
			return fmt.Errorf("%s: unknown config key %q", path, last)
		}
		p[last] = coerce(value, current)
	case []any:
		i, err := strconv.Atoi(last)
		if err != nil || i < 0 || i >= len(p) {
			return fmt.Errorf("%s: invalid list index %q", path, last)
		}
		p[i] = coerce(value, p[i])
	default:
		return fmt.Errorf("%s: cannot set a field inside a scalar", path)
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	var updated Config
	if err := json.Unmarshal(data, &updated); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*cfg = updated
	return nil
}

// optionalKey reports fields tagged omitempty, which are absent from the tree
// while empty.
func optionalKey(key string) bool {
	switch key {
	case "logFile", "sentryDsn", "publicBaseUrl", "generateSecret", "chromePath":
		return true
	}
	return false
}

func coerce(v, current any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch current.(type) {
	case bool:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case float64:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case []any:
		// FlexStringList also accepts the comma-separated string form.
		var list []any
		if json.Unmarshal([]byte(s), &list) == nil {
			return list
		}
	}
	return s
}

// Sanitize returns a copy of cfg with credentials masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Upload.AllowedTypes = append(FlexStringList(nil), cfg.Upload.AllowedTypes...)
	out.Server.CORSOrigins = append(FlexStringList(nil), cfg.Server.CORSOrigins...)

	out.Discord.Token = maskString(out.Discord.Token)
	out.Notify.Telegram.Token = maskString(out.Notify.Telegram.Token)
	out.Notify.Slack.WebhookURL = maskString(out.Notify.Slack.WebhookURL)
	out.General.SentryDSN = maskString(out.General.SentryDSN)
	out.Server.GenerateSecret = redact(out.Server.GenerateSecret)
	out.Server.Auth.PasswordHash = redact(out.Server.Auth.PasswordHash)
	return &out
}

// maskString keeps the first and last four characters of long secrets.
func maskString(s string) string {
	if len(s) <= 8 {
		return redact(s)
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// ListPaths flattens cfg into path → value pairs.
func ListPaths(cfg *Config) map[string]any {
	tree, err := asTree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	flatten("", tree, out)
	return out
}

// SortedPaths returns the keys of ListPaths in order.
func SortedPaths(paths map[string]any) []string {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(prefix string, section map[string]any, out map[string]any) {
	for k, v := range section {
		if prefix != "" {
			k = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(k, child, out)
			continue
		}
		out[k] = v
	}
}
