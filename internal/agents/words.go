package agents

import "strings"

// stopwords excluded from keyword scoring and topic extraction.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "being": {}, "below": {},
	"between": {}, "could": {}, "doing": {}, "during": {}, "every": {},
	"having": {}, "other": {}, "please": {}, "really": {}, "should": {},
	"their": {}, "there": {}, "these": {}, "thing": {}, "things": {},
	"think": {}, "those": {}, "through": {}, "under": {}, "until": {},
	"what": {}, "whats": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "would": {}, "your": {}, "yours": {}, "tell": {},
	"help": {}, "with": {}, "know": {}, "like": {}, "want": {},
	"need": {}, "make": {}, "some": {}, "much": {}, "many": {},
	"explain": {}, "question": {},
}

func isStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

// contentWords returns the lowercase words of s longer than minLen that are
// not stopwords, in order of appearance.
func contentWords(s string, minLen int) []string {
	var out []string
	for _, w := range splitWords(s) {
		if len(w) <= minLen || isStopword(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func titleCase(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
