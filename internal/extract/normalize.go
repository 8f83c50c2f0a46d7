package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// Rule replaces every occurrence of Pattern with Replacement.
type Rule struct {
	Pattern     string
	Replacement string
}

// DefaultRules folds typographic punctuation that breaks search matching.
var DefaultRules = []Rule{
	{Pattern: "\u00a0", Replacement: " "},
	{Pattern: "\u200b", Replacement: ""},
	{Pattern: "\u2018", Replacement: "'"},
	{Pattern: "\u2019", Replacement: "'"},
	{Pattern: "\u00b4", Replacement: "'"},
	{Pattern: "`", Replacement: "'"},
	{Pattern: "\u201c", Replacement: "\""},
	{Pattern: "\u201d", Replacement: "\""},
}


// mojibakeMarkers are the lead characters UTF-8 text shows when decoded as Windows-1252 or Windows-1250.
const mojibakeMarkers = "ÃÂÄÅĂĹ"

// Normalizer cleans an extracted string: HTML entities are decoded, mis-decoded UTF-8 is repaired, the rule
// table is applied once and whitespace is collapsed.
type Normalizer struct {
	replacer *strings.Replacer
	charmaps []*charmap.Charmap
}

// NewNormalizer builds a normalizer from rules. Mojibake is repaired by re-encoding through each charmap in
// order until the bytes form valid UTF-8.
func NewNormalizer(rules []Rule, charmaps ...*charmap.Charmap) *Normalizer {
	pairs := make([]string, 0, len(rules)*2)
	for _, rule := range rules {
		pairs = append(pairs, rule.Pattern, rule.Replacement)
	}
	return &Normalizer{replacer: strings.NewReplacer(pairs...), charmaps: charmaps}
}

// DefaultNormalizer applies [DefaultRules] and repairs Windows-1252 and Windows-1250 mojibake.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(DefaultRules, charmap.Windows1252, charmap.Windows1250)
}

// Normalize returns the cleaned form of s.
func (n *Normalizer) Normalize(s string) string {
	s = html.UnescapeString(s)
	s = n.repair(s)
	s = n.replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func (n *Normalizer) repair(s string) string {
	if !strings.ContainsAny(s, mojibakeMarkers) {
		return s
	}

	for _, cm := range n.charmaps {
		out, err := cm.NewEncoder().String(s)
		if err != nil || out == s || !utf8.ValidString(out) {
			continue
		}
		return out
	}
	return s
}
