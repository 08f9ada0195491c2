// Package correction fixes voice-transcription and typing errors before a
// message reaches agent matching. Corrections are driven by an ordered,
// versionable rule table rather than inline logic: spacing fixes run first,
// then rules for any detected topical context, then the generic table.
package correction

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

//go:embed rules.json
var defaultRulesJSON []byte

// Rule is a single (pattern, replacement, confidence) correction.
// Patterns are literal phrases matched case-insensitively on word boundaries.
type Rule struct {
	Pattern     string  `json:"pattern"`
	Replacement string  `json:"replacement"`
	Confidence  float64 `json:"confidence"`

	re *regexp.Regexp
}

// Context groups domain rules behind hint words. A context's rules apply
// only when at least one hint word appears in the message.
type Context struct {
	Name  string   `json:"name"`
	Hints []string `json:"hints"`
	Rules []Rule   `json:"rules"`
}

// Table is the full correction rule set.
type Table struct {
	Version  int       `json:"version"`
	Spacing  []Rule    `json:"spacing"`
	Contexts []Context `json:"contexts"`
	Generic  []Rule    `json:"generic"`
}

// Applied records one correction that fired.
type Applied struct {
	Pass        string  `json:"pass"` // "spacing", context name, or "generic"
	Pattern     string  `json:"pattern"`
	Replacement string  `json:"replacement"`
	Confidence  float64 `json:"confidence"`
}

// Corrector applies a compiled rule table.
type Corrector struct {
	table         Table
	minConfidence float64
}

// ParseTable decodes and compiles a rule table from JSON.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse rule table: %w", err)
	}
	if err := compileRules(t.Spacing); err != nil {
		return Table{}, err
	}
	for i := range t.Contexts {
		if err := compileRules(t.Contexts[i].Rules); err != nil {
			return Table{}, err
		}
	}
	if err := compileRules(t.Generic); err != nil {
		return Table{}, err
	}
	return t, nil
}

func compileRules(rules []Rule) error {
	for i := range rules {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(rules[i].Pattern) + `\b`)
		if err != nil {
			return fmt.Errorf("compile rule %q: %w", rules[i].Pattern, err)
		}
		rules[i].re = re
	}
	return nil
}

// New creates a Corrector with the given table. Rules below minConfidence
// are skipped.
func New(table Table, minConfidence float64) *Corrector {
	return &Corrector{table: table, minConfidence: minConfidence}
}

// NewDefault creates a Corrector from the embedded rule table with a 0.6
// confidence floor.
func NewDefault() (*Corrector, error) {
	table, err := ParseTable(defaultRulesJSON)
	if err != nil {
		return nil, err
	}
	return New(table, 0.6), nil
}

// Correct applies the rule passes in fixed priority order and returns the
// corrected text plus the list of rules that fired.
func (c *Corrector) Correct(text string) (string, []Applied) {
	var applied []Applied

	out := normalizeSpacing(text)
	out = c.applyRules(out, c.table.Spacing, "spacing", &applied)

	for _, ctx := range c.table.Contexts {
		if !c.contextDetected(out, ctx) {
			continue
		}
		out = c.applyRules(out, ctx.Rules, ctx.Name, &applied)
	}

	out = c.applyRules(out, c.table.Generic, "generic", &applied)
	return out, applied
}

func (c *Corrector) applyRules(text string, rules []Rule, pass string, applied *[]Applied) string {
	for _, r := range rules {
		if r.Confidence < c.minConfidence || r.re == nil {
			continue
		}
		if !r.re.MatchString(text) {
			continue
		}
		text = r.re.ReplaceAllString(text, r.Replacement)
		*applied = append(*applied, Applied{
			Pass:        pass,
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
			Confidence:  r.Confidence,
		})
	}
	return text
}

// contextDetected reports whether any hint word for ctx appears in text.
func (c *Corrector) contextDetected(text string, ctx Context) bool {
	lower := strings.ToLower(text)
	for _, hint := range ctx.Hints {
		if containsWord(lower, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

var (
	multiSpaceRe    = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforePunc = regexp.MustCompile(` +([,.!?;:])`)
)

// normalizeSpacing collapses repeated whitespace and removes space before
// punctuation. Runs before any table rule so patterns match predictably.
func normalizeSpacing(text string) string {
	out := strings.TrimSpace(text)
	out = multiSpaceRe.ReplaceAllString(out, " ")
	out = spaceBeforePunc.ReplaceAllString(out, "$1")
	return out
}
