package naming

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// leadingIndexPattern matches release-ordering prefixes such as "40_" or "01 - ".
var leadingIndexPattern = regexp.MustCompile(`^\d+[_\s-]+`)

// countMarkerPattern and pageMarkerPattern match media-count decorations
// ("20P3V", "12P", "P40") commonly appended to release names.
var (
	countMarkerPattern = regexp.MustCompile(`\d+P\d*V?`)
	pageMarkerPattern  = regexp.MustCompile(`P\d+`)
)

// sizeRules strip size annotations in their several observed shapes. The
// trailing capture stands in for a word boundary that must also reject
// non-ASCII letters, which RE2's \b does not; the matched delimiter is
// re-emitted by the replacement.
var sizeRules = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:KB|MB|GB|TB))($|[^\p{L}\p{N}_])`), "$2"},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*[MGT]?B)($|[^\p{L}\p{N}_])`), "$2"},
	{regexp.MustCompile(`(?i)_\d+[MGT]?B_?`), ""},
	{regexp.MustCompile(`(?i)^(\d+[MGT]?B)($|[^\p{L}\p{N}_])`), "$2"},
}

// bracketPatterns remove tag spans for the bracket styles that only ever
// carry noise. Parentheses (ASCII and full-width) are kept: they hold
// annotations that belong in the title.
var bracketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[[^\]]*\]`),
	regexp.MustCompile(`【[^】]*】`),
	regexp.MustCompile(`「[^」]*」`),
	regexp.MustCompile(`『[^』]*』`),
}

// numberedNoisePattern matches "<digits>_<word>" tokens such as "123_sample".
var numberedNoisePattern = regexp.MustCompile(`\d+_[A-Za-z0-9\x{4e00}-\x{9fff}]+`)

// disallowedPattern matches every character outside the kept set: letters,
// digits, underscore, whitespace, hyphen, and the preserved bracket/paren
// characters.
var disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s\-()\[\]（）【】「」『』]`)

var (
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
	trailingJunkPattern  = regexp.MustCompile(`[-_\s]+$`)
)

// Clean normalizes a raw release name into a presentable title.
//
// The pipeline strips, in order: leading numeric prefixes, "#title#junk"
// framing (only the span between the first two # characters is kept),
// P/V count markers, size annotations, bracketed tag spans, numbered
// noise tokens, and disallowed characters, then collapses whitespace and
// trims trailing separators. The pipeline is re-applied until the name
// stops changing, so a marker exposed by an earlier strip is still
// caught and Clean(Clean(x)) == Clean(x). The result is never empty: a
// name that cleans down to nothing becomes unnamed_<unix-seconds>.
func Clean(raw string) string {
	name := norm.NFC.String(raw)
	for {
		next := cleanOnce(name)
		if next == name {
			break
		}
		name = next
	}
	if name == "" {
		name = fmt.Sprintf("unnamed_%d", time.Now().Unix())
	}
	return name
}

func cleanOnce(name string) string {
	name = leadingIndexPattern.ReplaceAllString(name, "")

	if strings.HasPrefix(name, "#") {
		if rest := name[1:]; strings.Contains(rest, "#") {
			name = rest[:strings.Index(rest, "#")]
		}
	}

	name = countMarkerPattern.ReplaceAllString(name, "")
	name = pageMarkerPattern.ReplaceAllString(name, "")

	for _, rule := range sizeRules {
		name = rule.pattern.ReplaceAllString(name, rule.repl)
	}

	for _, pattern := range bracketPatterns {
		name = pattern.ReplaceAllString(name, "")
	}

	name = numberedNoisePattern.ReplaceAllString(name, "")
	name = disallowedPattern.ReplaceAllString(name, "")

	name = whitespaceRunPattern.ReplaceAllString(name, " ")
	name = trailingJunkPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
