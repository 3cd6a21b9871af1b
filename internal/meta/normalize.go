package meta

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Supported audio extensions, lowercase with leading dot
var supportedExtensions = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
}

// IsSupported reports whether path has an extension the pipeline ingests
func IsSupported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsWAV reports whether path has a .wav extension
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ContentType returns the MIME type uploaded alongside an audio file.
// Anything that is not an mp3 is sent as audio/wav.
func ContentType(path string) string {
	if ct, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "audio/wav"
}

// SanitizeComponent makes s safe for one segment of a remote key. Path
// separators and the characters <>:"|?* are removed, leading and trailing
// dots and spaces trimmed. An empty result becomes "Unknown".
func SanitizeComponent(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = collapseWhitespace(s)
	s = strings.Trim(s, ". ")
	if s == "" {
		return "Unknown"
	}
	return s
}

// RemoteKey builds "<artist>/<album>/<title><ext>" from a record. suffix,
// when non-empty, is appended to the title with a dash. The extension is
// lowercased.
func RemoteKey(rec *Record, ext, suffix string) string {
	name := SanitizeComponent(rec.Title)
	if suffix != "" {
		name += "-" + suffix
	}
	return SanitizeComponent(rec.Artist) + "/" +
		SanitizeComponent(rec.Album) + "/" +
		name + strings.ToLower(ext)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
