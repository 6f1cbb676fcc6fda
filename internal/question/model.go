package question

// PromptPlaceholder replaces a prompt that could not be isolated from its options.
const PromptPlaceholder = "(Không tách được nội dung câu hỏi)"

// OptionLetters is the alphabet the parser recognises as option keys.
const OptionLetters = "ABCD"

type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type Question struct {
	ID      string   `json:"id"`
	Number  int      `json:"number"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// Selectable reports whether the question has any option a user can pick.
func (q Question) Selectable() bool {
	return len(q.Options) > 0
}

// HasOption reports whether key is one of the declared option keys.
func (q Question) HasOption(key string) bool {
	for _, o := range q.Options {
		if o.Key == key {
			return true
		}
	}
	return false
}
