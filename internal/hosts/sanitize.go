package hosts

import (
	"strings"
	"unicode/utf8"
)

// sanitize filters text line by line and joins the kept lines with nl.
//
// A line is dropped when it contains any code point >= 128 or a marker.
// The code point rule is a coarse stand-in for corruption detection: a
// legitimate line written in a non-Latin script is dropped the same way.
// Blank and comment lines are kept, except trailing blank lines, which are
// removed so the separator written after the text stays stable.
func sanitize(text, nl string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if !isASCII(line) || hasMarker(line) {
			continue
		}
		kept = append(kept, line)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, nl)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func hasMarker(line string) bool {
	return strings.Contains(line, StartMarker) || strings.Contains(line, EndMarker)
}
