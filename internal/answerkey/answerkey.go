package answerkey

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cbtscan/internal/question"
)

// KeyLetters is the validation alphabet for key entries. It is one letter
// wider than the parser's option alphabet so keys referring to a fifth
// option survive import.
const KeyLetters = "ABCDE"

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

var (
	ErrMalformedKeyDocument = errors.New("malformed answer key document")
	ErrUnsupportedFormat    = errors.New("unsupported answer key format")
)

// KeyMap maps a question id to its correct letter.
type KeyMap map[string]string

type ImportReport struct {
	Format   string `json:"format"`
	Total    int    `json:"total"`
	Accepted int    `json:"accepted"`
	Skipped  int    `json:"skipped"`
}

type entry struct {
	numeral string
	letter  string
}

// Import reads a JSON key document. See ImportFormat.
func Import(doc []byte, questions []question.Question) (KeyMap, error) {
	key, _, err := ImportFormat(FormatJSON, doc, questions)
	return key, err
}

// ImportFormat decodes doc in the given format and maps every valid entry
// onto a question id. Entries with a bad numeral, a bad letter or no matching
// question are skipped; only a document that cannot be read as a mapping or
// a list of records fails.
func ImportFormat(format string, doc []byte, questions []question.Question) (KeyMap, ImportReport, error) {
	format = NormalizeFormat(format)
	report := ImportReport{Format: format}

	var (
		entries []entry
		err     error
	)
	switch format {
	case FormatJSON:
		entries, err = decodeJSON(doc)
	case FormatYAML:
		entries, err = decodeYAML(doc)
	case FormatXLSX:
		entries, err = decodeXLSX(doc)
	default:
		return nil, report, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, report, err
	}

	index := NumberIndex(questions)
	key := make(KeyMap, len(entries))
	for _, e := range entries {
		report.Total++
		n, err := strconv.Atoi(strings.TrimSpace(e.numeral))
		if err != nil {
			continue
		}
		letter, ok := NormalizeLetter(e.letter)
		if !ok {
			continue
		}
		id, ok := index[n]
		if !ok {
			continue
		}
		key[id] = letter
		report.Accepted++
	}
	report.Skipped = report.Total - report.Accepted
	return key, report, nil
}

// NormalizeFormat maps file extensions and content types onto a format name.
// An empty value means JSON.
func NormalizeFormat(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(v)), ".")
	switch v {
	case "", "json", "application/json":
		return FormatJSON
	case "yaml", "yml", "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML
	case "xlsx", "excel", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	default:
		return v
	}
}

// NormalizeLetter trims and upper-cases v and reports whether it is a single
// letter from KeyLetters.
func NormalizeLetter(v string) (string, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) != 1 || !strings.Contains(KeyLetters, v) {
		return "", false
	}
	return v, true
}

// NumberIndex maps question numbers to ids. A question without a number is
// addressed by its 1-based position. When a number repeats, the later
// question wins.
func NumberIndex(questions []question.Question) map[int]string {
	idx := make(map[int]string, len(questions))
	for i, q := range questions {
		idx[displayNumber(q, i)] = q.ID
	}
	return idx
}

// Export renders key in the flat document form: question number to upper
// case letter, for questions that have a key entry.
func Export(questions []question.Question, key KeyMap) map[string]string {
	out := make(map[string]string, len(key))
	for i, q := range questions {
		letter := strings.ToUpper(strings.TrimSpace(key[q.ID]))
		if letter == "" {
			continue
		}
		out[strconv.Itoa(displayNumber(q, i))] = letter
	}
	return out
}

func displayNumber(q question.Question, pos int) int {
	if q.Number > 0 {
		return q.Number
	}
	return pos + 1
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, ei := strconv.Atoi(strings.TrimSpace(keys[i]))
		nj, ej := strconv.Atoi(strings.TrimSpace(keys[j]))
		if ei == nil && ej == nil && ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}
