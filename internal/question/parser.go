package question

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	blockStartRe = regexp.MustCompile(`(?m)^Câu \d+:`)
	headerRe     = regexp.MustCompile(`(?s)^Câu (\d+):[ \t]*(.*)$`)
	optionLineRe = regexp.MustCompile(`^([A-D])\.(?:[ \t]+(.*))?$`)
)

// Parse splits canonical text into questions in block order. Blocks that do
// not start with a question header are dropped; a block whose options could
// not be recovered still yields a question with no options.
func Parse(canonical string) []Question {
	blocks := splitBlocks(canonical)
	out := make([]Question, 0, len(blocks))
	for _, block := range blocks {
		q, ok := parseBlock(block)
		if !ok {
			continue
		}
		out = append(out, q)
	}
	return out
}

// ParseText canonicalizes raw extracted text and parses it.
func ParseText(raw string) []Question {
	return Parse(Canonicalize(raw))
}

func splitBlocks(s string) []string {
	starts := blockStartRe.FindAllStringIndex(s, -1)
	if len(starts) == 0 {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	}

	blocks := make([]string, 0, len(starts)+1)
	if starts[0][0] > 0 {
		blocks = append(blocks, s[:starts[0][0]])
	}
	for i, loc := range starts {
		end := len(s)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		blocks = append(blocks, s[loc[0]:end])
	}
	return blocks
}

func parseBlock(block string) (Question, bool) {
	block = strings.TrimSpace(block)
	if block == "" {
		return Question{}, false
	}
	m := headerRe.FindStringSubmatch(block)
	if m == nil {
		return Question{}, false
	}
	// A numeral too large for int keeps its digits as the ID; Number 0 makes
	// key lookup fall back to the question's position.
	id := m[1]
	number, err := strconv.Atoi(m[1])
	if err != nil {
		number = 0
	} else {
		id = strconv.Itoa(number)
	}

	var (
		promptLines []string
		options     []Option
		inOptions   bool
	)
	seen := make(map[string]bool, len(OptionLetters))
	for _, line := range strings.Split(m[2], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if om := optionLineRe.FindStringSubmatch(line); om != nil && !seen[om[1]] {
			seen[om[1]] = true
			options = append(options, Option{Key: om[1], Text: strings.TrimSpace(om[2])})
			inOptions = true
			continue
		}
		if !inOptions {
			promptLines = append(promptLines, line)
			continue
		}
		last := &options[len(options)-1]
		last.Text = joinText(last.Text, line)
	}

	prompt := strings.Join(promptLines, " ")
	if prompt == "" {
		prompt = PromptPlaceholder
	}
	if options == nil {
		options = []Option{}
	}
	return Question{
		ID:      id,
		Number:  number,
		Prompt:  prompt,
		Options: options,
	}, true
}

func joinText(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}

// DuplicateNumbers returns, in ascending order, every question number that
// occurs more than once. Both questions stay in the parsed list, but a lookup
// by number only reaches the later one.
func DuplicateNumbers(questions []Question) []int {
	counts := make(map[int]int, len(questions))
	for _, q := range questions {
		counts[q.Number]++
	}
	var dups []int
	for n, c := range counts {
		if c > 1 {
			dups = append(dups, n)
		}
	}
	sort.Ints(dups)
	return dups
}
