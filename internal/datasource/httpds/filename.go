package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// filenameCleaner replaces runs of non-alphanumeric characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HashString returns a stable SHA1 hex digest of s.
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// SafeFilenameFromURL derives a filesystem-safe name (without extension) from
// a raw URL. The query string wins when present since it usually carries the
// interesting parameters; otherwise the last path segment minus its extension
// is used. Unparseable URLs and URLs that clean to nothing are hashed.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}

	if clean := cleanName(u.RawQuery); clean != "" {
		return clean
	}
	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if clean := cleanName(base); clean != "" {
		return clean
	}
	return HashString(rawURL)
}

// DefaultPath is where a download of rawURL lands when no path is configured.
func DefaultPath(cacheDir, rawURL string) string {
	return filepath.Join(cacheDir, SafeFilenameFromURL(rawURL)+".csv")
}

func cleanName(s string) string {
	return strings.Trim(filenameCleaner.ReplaceAllString(s, "_"), "_")
}
