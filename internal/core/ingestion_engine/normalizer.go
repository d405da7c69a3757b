package ingestion_engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minLineRunes is the longest line that is still treated as layout noise
// (headers, footers, page numbers).
const minLineRunes = 20

// layoutMarkup is stripped from every surviving line.
var layoutMarkup = strings.NewReplacer(
	"~", "", "|", "", `\`, "", "{", "", "}", "", "[", "", "]", "", "^", "", "_", "", "*", "", "`", "",
)

// Normalize cleans the raw text of one page.
//
// Each physical line is trimmed and dropped when it is short (<= 20 runes) or
// purely numeric. Survivors lose layout punctuation and C0/C1 control
// characters, have whitespace runs collapsed, and are joined with single
// spaces. The drop rule is checked again on the cleaned line, which keeps
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if isNoise(line) {
			continue
		}
		line = cleanLine(line)
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " ")
}

func cleanLine(line string) string {
	line = layoutMarkup.Replace(line)
	line = strings.Map(func(r rune) rune {
		if !isControl(r) {
			return r
		}
		// tabs, CR and NEL separate words; the rest is dropped
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, line)
	return strings.Join(strings.Fields(line), " ")
}

func isNoise(line string) bool {
	return utf8.RuneCountInString(line) <= minLineRunes || isDigits(line)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isControl(r rune) bool {
	return r <= 0x1F || (r >= 0x7F && r <= 0x9F)
}
