package constants

import "strings"

// File formats accepted by the document handler.
const (
	HWP  = "HWP"
	HWPX = "HWPX"
)

// FileTypes holds the formats reported in document metadata.
var FileTypes = []string{HWP, HWPX}

// AllowedExtensions holds the extensions accepted for upload, batch and watch.
var AllowedExtensions = map[string]struct{}{
	"hwp":  {},
	"hwpx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns HWP or HWPX for a supported extension and "" otherwise.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "hwp":
		return HWP
	case "hwpx":
		return HWPX
	default:
		return ""
	}
}

// IsAllowedExt reports whether ext (with or without dot) is a supported document extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// Image extraction defaults used by the HTTP API and the CLI.
const (
	DefaultImageLimit   = 10
	DefaultImageMinSize = 100
)
