package pipeline

import "strings"

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

// closers may trail a sentence ender ("...end.)" or `"quoted."`).
var closers = map[byte]bool{'"': true, '\'': true, ')': true, ']': true}

// EnsureSentence trims text and appends a period when it does not already
// end a sentence, so joined narration keeps a pause at each boundary.
func EnsureSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	i := len(text) - 1
	for i > 0 && closers[text[i]] {
		i--
	}
	if sentenceEnders[text[i]] {
		return text
	}
	if text[len(text)-1] == ':' || text[len(text)-1] == ';' || text[len(text)-1] == ',' {
		text = text[:len(text)-1]
	}
	return text + "."
}

// JoinNarration concatenates per-part narration into one script with a single
// space between sentence-terminated parts. Empty parts are skipped.
func JoinNarration(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := EnsureSentence(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
