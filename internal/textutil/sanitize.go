package textutil

import (
	"strings"
	"unicode"
)

const maxNameRunes = 120

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName strips characters that are unsafe in file names, drops
// control characters, collapses whitespace and caps the length.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = strings.TrimSpace(string(runes[:maxNameRunes]))
	}
	return strings.Trim(name, ". ")
}

// SanitizeToken lowercases value into [a-z0-9_-]. Empty results become
// "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// DubbedFileName names a dubbed output: "<title>.<lang>.dubbed<ext>".
// An empty title falls back to the job ID.
func DubbedFileName(title, jobID, language, ext string) string {
	base := SanitizeFileName(title)
	if base == "" {
		base = SanitizeToken(jobID)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return base + "." + SanitizeToken(language) + ".dubbed" + ext
}
