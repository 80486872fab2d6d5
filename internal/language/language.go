package language

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnsupported is returned for codes that parse but cannot be dubbed into.
var ErrUnsupported = errors.New("unsupported language")

type entry struct {
	code2 string // ISO 639-1
	code3 string // ISO 639-2/T
	alt3  string // ISO 639-2/B
	word  string
}

// Target languages the synthesis engine can speak.
var synthesisLanguages = []entry{
	{"en", "eng", "", "english"},
	{"es", "spa", "", "spanish"},
	{"fr", "fra", "fre", "french"},
	{"de", "deu", "ger", "german"},
	{"it", "ita", "", "italian"},
	{"pt", "por", "", "portuguese"},
	{"ru", "rus", "", "russian"},
	{"ja", "jpn", "", "japanese"},
	{"ko", "kor", "", "korean"},
	{"zh", "zho", "chi", "chinese"},
	{"hi", "hin", "", "hindi"},
	{"ar", "ara", "", "arabic"},
}

var aliases = func() map[string]string {
	m := make(map[string]string, len(synthesisLanguages)*3)
	for _, e := range synthesisLanguages {
		m[e.code3] = e.code2
		m[e.word] = e.code2
		if e.alt3 != "" {
			m[e.alt3] = e.code2
		}
	}
	return m
}()

// Normalize parses code and returns its canonical BCP 47 form ("es",
// "pt-BR"). Empty input is an error.
func Normalize(code string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return "", errors.New("language code is empty")
	}
	if alias, ok := aliases[trimmed]; ok {
		trimmed = alias
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	// Base guesses a language for undetermined tags; only an explicit base
	// language counts.
	if _, conf := tag.Base(); conf == language.No || strings.HasPrefix(tag.String(), "und") {
		return "", fmt.Errorf("invalid language code %q", code)
	}
	return tag.String(), nil
}

// NormalizeTarget is Normalize restricted to languages the synthesis engine
// supports.
func NormalizeTarget(code string) (string, error) {
	normalized, err := Normalize(code)
	if err != nil {
		return "", err
	}
	if !IsSupported(normalized) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
	return normalized, nil
}

// ToISO2 returns the two-letter base language for code, or "" when code is
// not a recognizable language.
func ToISO2(code string) string {
	normalized, err := Normalize(code)
	if err != nil {
		return ""
	}
	tag := language.Make(normalized)
	base, _ := tag.Base()
	iso := base.String()
	if len(iso) != 2 {
		return ""
	}
	return iso
}

// IsSupported reports whether the base language of code is a synthesis
// target.
func IsSupported(code string) bool {
	iso := ToISO2(code)
	return iso != "" && slices.ContainsFunc(synthesisLanguages, func(e entry) bool { return e.code2 == iso })
}

// Supported lists the synthesis target languages as ISO 639-1 codes.
func Supported() []string {
	out := make([]string, 0, len(synthesisLanguages))
	for _, e := range synthesisLanguages {
		out = append(out, e.code2)
	}
	return out
}

// DisplayName returns the English name of code. Unknown input is echoed
// uppercased; empty input is "Unknown".
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	normalized, err := Normalize(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Tags().Name(language.Make(normalized)); name != "" {
		return name
	}
	return strings.ToUpper(normalized)
}

// ExtractFromTags reads a language from ffprobe stream tags.
func ExtractFromTags(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		value := strings.TrimSpace(strings.ReplaceAll(tags[key], "\u0000", ""))
		if value == "" || strings.EqualFold(value, "und") {
			continue
		}
		if iso := ToISO2(value); iso != "" {
			return iso
		}
	}
	return ""
}
