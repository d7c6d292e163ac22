package analysis

import "strings"

// TruncateRunes cuts s to at most n runes, marking the cut with "...".
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// SplitText breaks text into chunks of at most size runes that overlap by
// overlap runes. Cuts prefer paragraph, line, sentence, then word
// boundaries in the second half of a window.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	r := []rune(text)
	if len(r) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(r); {
		end := start + size
		if end >= len(r) {
			chunks = append(chunks, strings.TrimSpace(string(r[start:])))
			break
		}
		end = start + cutPoint(r[start:end])
		if c := strings.TrimSpace(string(r[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint returns the offset just past the best separator in the back half
// of window, or len(window) when there is none.
func cutPoint(window []rune) int {
	s := string(window)
	half := len(string(window[:len(window)/2]))
	for _, sep := range splitSeparators {
		if i := strings.LastIndex(s, sep); i >= half {
			return len([]rune(s[:i+len(sep)]))
		}
	}
	return len(window)
}
