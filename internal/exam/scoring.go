package exam

import (
	"strings"

	"cbtscan/internal/question"
)

type Status string

const (
	StatusCorrect         Status = "correct"
	StatusWrong           Status = "wrong"
	StatusUnansweredKeyed Status = "unanswered_keyed"
	StatusNoKey           Status = "nokey"
	StatusAnsweredNoKey   Status = "answered_nokey"
	StatusAnswered        Status = "answered"
	StatusUnanswered      Status = "unanswered"
)

// AnswerMap maps a question id to the letter the user picked.
type AnswerMap map[string]string

type ScoreResult struct {
	CorrectCount int `json:"correct_count"`
	WrongCount   int `json:"wrong_count"`
	TotalKeyed   int `json:"total_keyed"`
}

// Percent is the share of keyed questions answered correctly, 0..100.
func (s ScoreResult) Percent() float64 {
	if s.TotalKeyed == 0 {
		return 0
	}
	return float64(s.CorrectCount) * 100 / float64(s.TotalKeyed)
}

type QuestionStatus struct {
	QuestionID string `json:"question_id"`
	Number     int    `json:"number"`
	Selected   string `json:"selected,omitempty"`
	Correct    string `json:"correct,omitempty"`
	Status     Status `json:"status"`
	Selectable bool   `json:"selectable"`
}

type Report struct {
	Submitted bool             `json:"submitted"`
	Items     []QuestionStatus `json:"items"`
	Score     ScoreResult      `json:"score"`
	Percent   float64          `json:"percent"`
}

// StatusOf classifies one question. Before submission only answered or
// unanswered is reported; afterwards the key decides.
func StatusOf(q question.Question, answers AnswerMap, key map[string]string, submitted bool) Status {
	selected := clean(answers[q.ID])
	if !submitted {
		if selected == "" {
			return StatusUnanswered
		}
		return StatusAnswered
	}

	correct := clean(key[q.ID])
	switch {
	case correct == "" && selected == "":
		return StatusNoKey
	case correct == "":
		return StatusAnsweredNoKey
	case selected == "":
		return StatusUnansweredKeyed
	case strings.EqualFold(selected, correct):
		return StatusCorrect
	default:
		return StatusWrong
	}
}

// Score counts correct and wrong answers over keyed questions. Questions
// without a key entry never count.
func Score(questions []question.Question, answers AnswerMap, key map[string]string) ScoreResult {
	var res ScoreResult
	for _, q := range questions {
		switch StatusOf(q, answers, key, true) {
		case StatusCorrect:
			res.CorrectCount++
			res.TotalKeyed++
		case StatusWrong:
			res.WrongCount++
			res.TotalKeyed++
		case StatusUnansweredKeyed:
			res.TotalKeyed++
		}
	}
	return res
}

// Reconcile builds the per-question view and the aggregate score.
func Reconcile(questions []question.Question, answers AnswerMap, key map[string]string, submitted bool) Report {
	items := make([]QuestionStatus, 0, len(questions))
	for _, q := range questions {
		items = append(items, QuestionStatus{
			QuestionID: q.ID,
			Number:     q.Number,
			Selected:   strings.ToUpper(clean(answers[q.ID])),
			Correct:    strings.ToUpper(clean(key[q.ID])),
			Status:     StatusOf(q, answers, key, submitted),
			Selectable: q.Selectable(),
		})
	}
	score := Score(questions, answers, key)
	return Report{
		Submitted: submitted,
		Items:     items,
		Score:     score,
		Percent:   score.Percent(),
	}
}

func clean(v string) string {
	return strings.TrimSpace(v)
}
