package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	fileNameRe = regexp.MustCompile(`[^а-яА-Яa-zA-Z0-9]+`)
	hostRe     = regexp.MustCompile(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// SanitizeFileName replaces everything that is not a letter or digit with underscores,
// so a video title can be used as a filesystem name.
func SanitizeFileName(name string) string {
	sanitized := fileNameRe.ReplaceAllString(name, "_")
	return strings.Trim(sanitized, "_")
}

// GenerateFileName builds an output filename from a video title.
func GenerateFileName(title, ext string) string {
	base := SanitizeFileName(title)
	if base == "" {
		base = "video"
	}
	if ext == "" {
		ext = "mp4"
	}
	return base + "." + ext
}

// IsValidLink reports whether text is an http(s) URL with a plausible hostname.
func IsValidLink(text string) bool {
	parsedURL, err := url.ParseRequestURI(text)
	if err != nil {
		return false
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	return hostRe.MatchString(parsedURL.Host)
}
