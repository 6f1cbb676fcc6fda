package report

import (
	"bytes"
	"context"
	"fmt"

	"cbtscan/internal/exam"

	"github.com/xuri/excelize/v2"
)

type sheetReader interface {
	GetSheet(ctx context.Context, id string) (*exam.Sheet, error)
}

type Service struct {
	sheets sheetReader
}

// Summary aggregates one sheet's reconciliation by status.
type Summary struct {
	SheetID         string  `json:"sheet_id"`
	Name            string  `json:"name"`
	Submitted       bool    `json:"submitted"`
	Questions       int     `json:"questions"`
	Unselectable    int     `json:"unselectable"`
	Answered        int     `json:"answered"`
	Keyed           int     `json:"keyed"`
	Correct         int     `json:"correct"`
	Wrong           int     `json:"wrong"`
	UnansweredKeyed int     `json:"unanswered_keyed"`
	NoKey           int     `json:"nokey"`
	AnsweredNoKey   int     `json:"answered_nokey"`
	Percent         float64 `json:"percent"`
}

func NewService(sheets sheetReader) *Service {
	return &Service{sheets: sheets}
}

func (s *Service) SummaryBySheet(ctx context.Context, id string) (*Summary, error) {
	sh, err := s.sheets.GetSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := Summarize(sh)
	return &sum, nil
}

func (s *Service) ExportXLSX(ctx context.Context, id string) ([]byte, error) {
	sh, err := s.sheets.GetSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildXLSX(sh)
}

func Summarize(sh *exam.Sheet) Summary {
	rep := exam.Reconcile(sh.Questions, sh.Answers, sh.Key, sh.Submitted)
	sum := Summary{
		SheetID:   sh.ID,
		Name:      sh.Name,
		Submitted: rep.Submitted,
		Questions: len(sh.Questions),
		Keyed:     rep.Score.TotalKeyed,
		Correct:   rep.Score.CorrectCount,
		Wrong:     rep.Score.WrongCount,
		Percent:   rep.Percent,
	}
	for _, it := range rep.Items {
		if !it.Selectable {
			sum.Unselectable++
		}
		if it.Selected != "" {
			sum.Answered++
		}
		switch it.Status {
		case exam.StatusUnansweredKeyed:
			sum.UnansweredKeyed++
		case exam.StatusNoKey:
			sum.NoKey++
		case exam.StatusAnsweredNoKey:
			sum.AnsweredNoKey++
		}
	}
	return sum
}

const (
	resultSheet  = "Kết quả"
	summarySheet = "Tổng kết"
)

// BuildXLSX renders a workbook with one row per question and a summary
// sheet.
func BuildXLSX(sh *exam.Sheet) ([]byte, error) {
	rep := exam.Reconcile(sh.Questions, sh.Answers, sh.Key, sh.Submitted)
	prompts := make(map[string]string, len(sh.Questions))
	for _, q := range sh.Questions {
		prompts[q.ID] = q.Prompt
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), resultSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"number", "prompt", "selected", "correct", "status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resultSheet, cell, h)
	}
	for i, it := range rep.Items {
		values := []any{it.Number, prompts[it.QuestionID], it.Selected, it.Correct, string(it.Status)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(resultSheet, cell, v)
		}
	}
	_ = f.SetColWidth(resultSheet, "A", "A", 8)
	_ = f.SetColWidth(resultSheet, "B", "B", 60)
	_ = f.SetColWidth(resultSheet, "C", "E", 18)

	sum := Summarize(sh)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("add summary sheet: %w", err)
	}
	rows := [][2]any{
		{"name", sum.Name},
		{"submitted", sum.Submitted},
		{"questions", sum.Questions},
		{"keyed", sum.Keyed},
		{"correct", sum.Correct},
		{"wrong", sum.Wrong},
		{"unanswered_keyed", sum.UnansweredKeyed},
		{"percent", sum.Percent},
	}
	for i, row := range rows {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
