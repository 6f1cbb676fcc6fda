package question

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Question
	}{
		{
			name: "inline options",
			raw:  "Cau1: What is 2+2? a) 3 b) 4 c) 5",
			want: []Question{{
				ID: "1", Number: 1, Prompt: "What is 2+2?",
				Options: []Option{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}, {Key: "C", Text: "5"}},
			}},
		},
		{
			name: "option without punctuation",
			raw:  "Câu 4: Deploy?\na Wait\nb Ship it",
			want: []Question{{
				ID: "4", Number: 4, Prompt: "Deploy?",
				Options: []Option{{Key: "A", Text: "Wait"}, {Key: "B", Text: "Ship it"}},
			}},
		},
		{
			name: "preamble discarded",
			raw:  "ĐỀ THI THỬ THPT\nThời gian: 50 phút\nCâu 1: Q?\nA. x",
			want: []Question{{
				ID: "1", Number: 1, Prompt: "Q?",
				Options: []Option{{Key: "A", Text: "x"}},
			}},
		},
		{
			name: "wrapped prompt and option",
			raw:  "Câu 2: line one\nline two\nA. first\nline three\nB. y",
			want: []Question{{
				ID: "2", Number: 2, Prompt: "line one line two",
				Options: []Option{{Key: "A", Text: "first line three"}, {Key: "B", Text: "y"}},
			}},
		},
		{
			name: "no options recovered",
			raw:  "Câu 3: just text",
			want: []Question{{ID: "3", Number: 3, Prompt: "just text", Options: []Option{}}},
		},
		{
			name: "prompt not isolated",
			raw:  "Câu 4:\nA. x",
			want: []Question{{
				ID: "4", Number: 4, Prompt: PromptPlaceholder,
				Options: []Option{{Key: "A", Text: "x"}},
			}},
		},
		{
			name: "block order kept",
			raw:  "Câu 5: five\nCâu 2: two",
			want: []Question{
				{ID: "5", Number: 5, Prompt: "five", Options: []Option{}},
				{ID: "2", Number: 2, Prompt: "two", Options: []Option{}},
			},
		},
		{
			name: "repeated letter continues current option",
			raw:  "Câu 1: Q\nA. x\nB. y\nA. z",
			want: []Question{{
				ID: "1", Number: 1, Prompt: "Q",
				Options: []Option{{Key: "A", Text: "x"}, {Key: "B", Text: "y A. z"}},
			}},
		},
		{
			name: "marker glued to previous option",
			raw:  "Câu 1: 5+5? A. 9 B. 10Câu 2: Thủ đô? A. Hà Nội",
			want: []Question{
				{ID: "1", Number: 1, Prompt: "5+5?", Options: []Option{{Key: "A", Text: "9"}, {Key: "B", Text: "10"}}},
				{ID: "2", Number: 2, Prompt: "Thủ đô?", Options: []Option{{Key: "A", Text: "Hà Nội"}}},
			},
		},
		{
			name: "number too large for int",
			raw:  "Câu 99999999999999999999: Q\nA. x",
			want: []Question{{
				ID: "99999999999999999999", Number: 0, Prompt: "Q",
				Options: []Option{{Key: "A", Text: "x"}},
			}},
		},
		{
			name: "nothing to parse",
			raw:  "chỉ có lời dẫn",
			want: []Question{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseText(tc.raw)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ParseText mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStableIDs(t *testing.T) {
	canonical := Canonicalize("Câu 3: a? A. 1 B. 2\nCâu 1: b? C. 3 D. 4\nCâu 2: c?")
	first := Parse(canonical)
	second := Parse(canonical)
	require.Len(t, first, 3)

	ids := func(qs []Question) []string {
		out := make([]string, 0, len(qs))
		for _, q := range qs {
			out = append(out, q.ID)
		}
		return out
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids(first))
	assert.Equal(t, ids(first), ids(second))
}

func TestParseOptionOrderFollowsSource(t *testing.T) {
	qs := ParseText("Câu 9: order? d) four b) two a) one")
	require.Len(t, qs, 1)
	keys := make([]string, 0, len(qs[0].Options))
	for _, o := range qs[0].Options {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"D", "B", "A"}, keys)
}

func TestSelectable(t *testing.T) {
	qs := ParseText("Câu 1: no options\nCâu 2: has A. yes")
	require.Len(t, qs, 2)
	assert.False(t, qs[0].Selectable())
	assert.True(t, qs[1].Selectable())
	assert.True(t, qs[1].HasOption("A"))
	assert.False(t, qs[1].HasOption("B"))
}

func TestDuplicateNumbers(t *testing.T) {
	qs := Parse("Câu 1: a\nCâu 2: b\nCâu 1: c\nCâu 3: d\nCâu 3: e")
	require.Len(t, qs, 5)
	assert.Equal(t, []int{1, 3}, DuplicateNumbers(qs))
	assert.Empty(t, DuplicateNumbers(qs[:2]))
}
