package report

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cbtscan/internal/answerkey"
	"cbtscan/internal/exam"
	"cbtscan/internal/question"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubSheets map[string]*exam.Sheet

func (s stubSheets) GetSheet(_ context.Context, id string) (*exam.Sheet, error) {
	sh, ok := s[id]
	if !ok {
		return nil, exam.ErrSheetNotFound
	}
	return sh, nil
}

func gradedSheet() *exam.Sheet {
	opts := []question.Option{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}}
	return &exam.Sheet{
		ID:   "abc123",
		Name: "de.txt",
		Questions: []question.Question{
			{ID: "1", Number: 1, Prompt: "one", Options: opts},
			{ID: "2", Number: 2, Prompt: "two", Options: opts},
			{ID: "3", Number: 3, Prompt: "three", Options: opts},
			{ID: "4", Number: 4, Prompt: "four", Options: []question.Option{}},
		},
		Answers:   exam.AnswerMap{"1": "A", "2": "A", "4": "B"},
		Key:       answerkey.KeyMap{"1": "A", "2": "B", "3": "A"},
		Submitted: true,
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(gradedSheet())
	assert.Equal(t, Summary{
		SheetID:         "abc123",
		Name:            "de.txt",
		Submitted:       true,
		Questions:       4,
		Unselectable:    1,
		Answered:        3,
		Keyed:           3,
		Correct:         1,
		Wrong:           1,
		UnansweredKeyed: 1,
		AnsweredNoKey:   1,
		Percent:         got.Percent,
	}, got)
	assert.InDelta(t, 33.33, got.Percent, 0.01)
}

func TestBuildXLSX(t *testing.T) {
	body, err := BuildXLSX(gradedSheet())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(resultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"number", "prompt", "selected", "correct", "status"}, rows[0])
	assert.Equal(t, []string{"2", "two", "A", "B", "wrong"}, rows[2])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"correct", "1"}, summary[4])
}

func TestHandlerNotFound(t *testing.T) {
	h := NewHandler(NewService(stubSheets{}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sheets/zz/summary", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "zz")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	h.Summary(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerExportXLSX(t *testing.T) {
	h := NewHandler(NewService(stubSheets{"abc123": gradedSheet()}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sheets/abc123/report.xlsx", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "abc123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	h.ExportXLSX(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ket-qua-abc123.xlsx")
	_, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
}
