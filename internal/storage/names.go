// Package storage holds uploaded files and rendered transcripts.
package storage

import (
	"fmt"
	"math/rand/v2"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"transcripthost/internal/domain"
)

// DefaultMaxSizeBytes is used when a store is configured without a limit.
const DefaultMaxSizeBytes = 10 * 1024 * 1024

// MetadataFile is the transcript index kept next to transcripts. Listings skip it.
const MetadataFile = "metadata.json"

// UniqueName returns prefix + unix millis + "-" + random digits + ext,
// e.g. UniqueName("file-", ".png") = "file-1717000000000-123456789.png".
func UniqueName(prefix, ext string) string {
	return prefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.Itoa(rand.IntN(1e9)) + ext
}

// CheckType reports ErrFileTypeNotAllowed when contentType is not in allowed.
// Parameters such as charset are ignored. An empty allowed list permits everything.
func CheckType(contentType string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	base := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		base = mt
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), base) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrFileTypeNotAllowed, contentType)
}

// cleanName reduces name to its base component.
func cleanName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: file name %q", domain.ErrInputInvalid, name)
	}
	return base, nil
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
