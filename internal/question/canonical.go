package question

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Pass is a single named rewrite step of the canonicalizer.
type Pass struct {
	Name  string
	Apply func(string) string
}

var (
	lineBreakReplacer = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"\u2028", "\n",
		"\u2029", "\n",
		"\f", "\n",
	)

	inlineBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	markerRepairRe = regexp.MustCompile(`(?i)c[ \t.,'’´^]{0,2}[âa©][ \t.,'’´^]{0,2}u([ \t]*\d)`)
	hspaceRe       = regexp.MustCompile(`[ \t\v\x{00A0}\x{2007}\x{202F}\x{3000}]+`)
	manyNewlinesRe = regexp.MustCompile(`\n{3,}`)
	blankRunRe     = regexp.MustCompile(`\n{2,}`)

	questionMarkerRe = regexp.MustCompile(`(?i)c[âa]u[ \t]*(\d+)[ \t]*[:.)\-]?[ \t]*`)
	optionPunctRe    = regexp.MustCompile(`(^|\s)([A-Da-d])[.):\]][ \t]*`)
	optionLooseRe    = regexp.MustCompile(`(?m)^[ \t]*([A-Da-d])[ \t]+(\S)`)

	// A numbered heading ends at the numeral, continues after punctuation
	// ("Phần I. Trắc nghiệm") or carries an all-caps title ("PHẦN 2 ĐỌC HIỂU").
	headingRe = regexp.MustCompile(`(?i)^(?:chương|chuong|chapter|phần|phan|part|mục|muc)(?:\s+(?-i:\d+|[IVXLCDM]+)(?:\s*[.:)\-–].*|\s+(?-i:[^\p{Ll}]+))?)?$`)
	footerRe  = regexp.MustCompile(`(?i)^(?:trang|page)\s+\d+(?:\s*/\s*\d+)?$`)
)

// Pipeline is the ordered list of passes Canonicalize applies. Punctuated
// option markers are split before the whitespace-only form so a line such
// as "a) b c" yields option A rather than being read as option B.
var Pipeline = []Pass{
	{Name: "unicode", Apply: composeUnicode},
	{Name: "line-breaks", Apply: normalizeLineBreaks},
	{Name: "inline-breaks", Apply: expandInlineBreaks},
	{Name: "marker-repair", Apply: repairQuestionWord},
	{Name: "whitespace", Apply: collapseWhitespace},
	{Name: "question-markers", Apply: splitQuestionMarkers},
	{Name: "option-markers", Apply: splitOptionMarkers},
	{Name: "option-markers-loose", Apply: splitLooseOptionMarkers},
	{Name: "headings", Apply: dropNoiseLines},
	{Name: "compact", Apply: compact},
}

// maxRounds bounds how often the pipeline is rerun on its own output. One
// round can expose a marker to the next: "c) au 5" becomes "C. au 5", which
// marker-repair then reads as "Câu 5".
const maxRounds = 4

// Canonicalize rewrites extracted exam text into the line form the parser
// expects: "Câu N: prompt" followed by "A. text" lines. It never fails, and
// its output is a fixed point of the pipeline.
func Canonicalize(raw string) string {
	out := runPipeline(raw, nil)
	for i := 1; i < maxRounds; i++ {
		next := runPipeline(out, nil)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func runPipeline(s string, steps *[]Step) string {
	for _, p := range Pipeline {
		s = p.Apply(s)
		if steps != nil {
			*steps = append(*steps, Step{Pass: p.Name, Text: s})
		}
	}
	return s
}

// Step is the text as it stood after one pass.
type Step struct {
	Pass string `json:"pass"`
	Text string `json:"text"`
}

// Trace runs the pipeline like Canonicalize and records every intermediate
// result. Extra rounds are only recorded when they changed the text, so the
// last step's text equals Canonicalize(raw).
func Trace(raw string) []Step {
	steps := make([]Step, 0, len(Pipeline))
	out := runPipeline(raw, &steps)
	for i := 1; i < maxRounds; i++ {
		var round []Step
		next := runPipeline(out, &round)
		if next == out {
			break
		}
		steps = append(steps, round...)
		out = next
	}
	return steps
}

func composeUnicode(s string) string {
	return norm.NFC.String(s)
}

func normalizeLineBreaks(s string) string {
	return lineBreakReplacer.Replace(s)
}

func expandInlineBreaks(s string) string {
	return inlineBreakRe.ReplaceAllString(s, "\n")
}

// repairQuestionWord fixes "C âu", "C.âu", "C©u" and the unaccented "Cau"
// when they stand in front of a question number.
func repairQuestionWord(s string) string {
	return replaceMarkers(s, markerRepairRe, func(sub []string) string {
		return "Câu" + sub[1]
	})
}

func collapseWhitespace(s string) string {
	s = hspaceRe.ReplaceAllString(s, " ")
	return manyNewlinesRe.ReplaceAllString(s, "\n\n")
}

func splitQuestionMarkers(s string) string {
	return replaceMarkers(s, questionMarkerRe, func(sub []string) string {
		n := strings.TrimLeft(sub[1], "0")
		if n == "" {
			n = "0"
		}
		return "\nCâu " + n + ": "
	})
}

// replaceMarkers rewrites the matches of re that start a question marker and
// leaves the rest untouched. repl receives the match and its groups.
func replaceMarkers(s string, re *regexp.Regexp, repl func(sub []string) string) string {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(locs)*4)
	last := 0
	for _, loc := range locs {
		if !markerStart(s, loc[0]) {
			continue
		}
		sub := make([]string, len(loc)/2)
		for g := range sub {
			if loc[2*g] >= 0 {
				sub[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(repl(sub))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// markerStart reports whether a marker may begin at s[i]: at the start of the
// text, after anything but a letter ("10Câu 2"), or as a capital C glued to
// a lowercase word ("đúngCâu 2"). "Macau 5" is not a marker.
func markerStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	if !unicode.IsLetter(prev) {
		return true
	}
	return unicode.IsLower(prev) && s[i] == 'C'
}

// splitOptionMarkers moves every "a)", "B.", "c:" or "d]" marker that is
// followed by content onto its own line as "A. ".
func splitOptionMarkers(s string) string {
	locs := optionPunctRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(locs)*2)
	last := 0
	for _, loc := range locs {
		end := loc[1]
		if end >= len(s) || isSpace(s[end]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteByte('\n')
		b.WriteString(strings.ToUpper(s[loc[4]:loc[5]]))
		b.WriteString(". ")
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func splitLooseOptionMarkers(s string) string {
	return optionLooseRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := optionLooseRe.FindStringSubmatch(m)
		return strings.ToUpper(sub[1]) + ". " + sub[2]
	})
}

func dropNoiseLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || headingRe.MatchString(line) || footerRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func compact(s string) string {
	return strings.TrimSpace(blankRunRe.ReplaceAllString(s, "\n"))
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
