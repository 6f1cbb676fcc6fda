package exam

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cbtscan/internal/answerkey"
	"cbtscan/internal/autosave"
	"cbtscan/internal/question"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrSheetNotFound    = errors.New("sheet not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidChoice    = errors.New("choice must be a single letter A-E")
	ErrSheetSubmitted   = errors.New("sheet already submitted")
	ErrEmptyDocument    = errors.New("document has no usable text")
)

const sheetKeyPrefix = "sheet:"

// Sheet is one loaded document together with the user's answers and the
// answer key. Questions are fixed for the lifetime of the sheet.
type Sheet struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Questions        []question.Question `json:"questions"`
	DuplicateNumbers []int               `json:"duplicate_numbers,omitempty"`
	Answers          AnswerMap           `json:"answers"`
	Key              answerkey.KeyMap    `json:"key"`
	Submitted        bool                `json:"submitted"`
	SubmissionID     string              `json:"submission_id,omitempty"`
	SubmittedAt      *time.Time          `json:"submitted_at,omitempty"`
	LoadedAt         time.Time           `json:"loaded_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type LoadResult struct {
	Sheet    *Sheet `json:"sheet"`
	Restored bool   `json:"restored"`
}

type Service struct {
	store  autosave.Store
	log    *zap.Logger
	now    func() time.Time
	events func(name string)

	mu sync.Mutex
}

func NewService(store autosave.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now, events: func(string) {}}
}

// OnEvent registers a callback for lifecycle events such as
// "document_loaded" and "sheet_submitted".
func (s *Service) OnEvent(fn func(name string)) {
	if fn != nil {
		s.events = fn
	}
}

// DocumentID derives a stable sheet id from canonical text, so loading the
// same document again reaches the same autosave entry.
func DocumentID(canonical string) string {
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:12])
}

// LoadDocument parses raw extracted text into a sheet. If a sheet for the
// same document was saved before, its answers and key are kept.
func (s *Service) LoadDocument(ctx context.Context, name, raw string) (*LoadResult, error) {
	canonical := question.Canonicalize(raw)
	if canonical == "" {
		return nil, ErrEmptyDocument
	}
	questions := question.Parse(canonical)
	id := DocumentID(canonical)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sheet, err := s.load(ctx, id)
	restored := err == nil
	switch {
	case restored:
		sheet.Questions = questions
		if name != "" {
			sheet.Name = name
		}
	case errors.Is(err, ErrSheetNotFound):
		sheet = &Sheet{
			ID:        id,
			Name:      strings.TrimSpace(name),
			Questions: questions,
			Answers:   AnswerMap{},
			Key:       answerkey.KeyMap{},
			LoadedAt:  now,
		}
	default:
		return nil, err
	}
	sheet.DuplicateNumbers = question.DuplicateNumbers(questions)
	sheet.UpdatedAt = now

	if err := s.save(ctx, sheet); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("sheet_id", id),
		zap.String("name", sheet.Name),
		zap.Int("questions", len(questions)),
		zap.Bool("restored", restored),
	}
	if len(sheet.DuplicateNumbers) > 0 {
		s.log.Warn("duplicate question numbers", append(fields, zap.Ints("numbers", sheet.DuplicateNumbers))...)
	} else {
		s.log.Info("document loaded", fields...)
	}
	if restored {
		s.events("document_restored")
	} else {
		s.events("document_loaded")
	}
	return &LoadResult{Sheet: sheet, Restored: restored}, nil
}

func (s *Service) GetSheet(ctx context.Context, id string) (*Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, id)
}

func (s *Service) SetAnswer(ctx context.Context, id, questionID, choice string) (*Sheet, error) {
	letter, ok := answerkey.NormalizeLetter(choice)
	if !ok {
		return nil, ErrInvalidChoice
	}
	return s.update(ctx, id, func(sh *Sheet) error {
		if sh.Submitted {
			return ErrSheetSubmitted
		}
		if !sh.hasQuestion(questionID) {
			return ErrQuestionNotFound
		}
		sh.Answers[questionID] = letter
		return nil
	})
}

func (s *Service) ClearAnswer(ctx context.Context, id, questionID string) (*Sheet, error) {
	return s.update(ctx, id, func(sh *Sheet) error {
		if sh.Submitted {
			return ErrSheetSubmitted
		}
		if !sh.hasQuestion(questionID) {
			return ErrQuestionNotFound
		}
		delete(sh.Answers, questionID)
		return nil
	})
}

// SetKey records the correct letter for one question; an empty choice
// removes the entry.
func (s *Service) SetKey(ctx context.Context, id, questionID, choice string) (*Sheet, error) {
	letter := ""
	if strings.TrimSpace(choice) != "" {
		var ok bool
		letter, ok = answerkey.NormalizeLetter(choice)
		if !ok {
			return nil, ErrInvalidChoice
		}
	}
	return s.update(ctx, id, func(sh *Sheet) error {
		if !sh.hasQuestion(questionID) {
			return ErrQuestionNotFound
		}
		if letter == "" {
			delete(sh.Key, questionID)
			return nil
		}
		sh.Key[questionID] = letter
		return nil
	})
}

// ImportKey replaces the sheet's key with the valid entries of doc.
func (s *Service) ImportKey(ctx context.Context, id, format string, doc []byte) (*answerkey.ImportReport, error) {
	var report answerkey.ImportReport
	_, err := s.update(ctx, id, func(sh *Sheet) error {
		key, rep, err := answerkey.ImportFormat(format, doc, sh.Questions)
		if err != nil {
			return err
		}
		sh.Key = key
		report = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("answer key imported",
		zap.String("sheet_id", id),
		zap.String("format", report.Format),
		zap.Int("accepted", report.Accepted),
		zap.Int("skipped", report.Skipped),
	)
	s.events("key_imported")
	return &report, nil
}

func (s *Service) ExportKey(ctx context.Context, id string) (map[string]string, error) {
	sh, err := s.GetSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	return answerkey.Export(sh.Questions, sh.Key), nil
}

// Submit freezes the answers and returns the graded report. Submitting an
// already submitted sheet returns the same report.
func (s *Service) Submit(ctx context.Context, id string) (*Report, error) {
	var first bool
	sh, err := s.update(ctx, id, func(sh *Sheet) error {
		if sh.Submitted {
			return nil
		}
		first = true
		at := s.now().UTC()
		sh.Submitted = true
		sh.SubmittedAt = &at
		sh.SubmissionID = uuid.NewString()
		return nil
	})
	if err != nil {
		return nil, err
	}
	rep := Reconcile(sh.Questions, sh.Answers, sh.Key, true)
	if !first {
		return &rep, nil
	}
	s.log.Info("sheet submitted",
		zap.String("sheet_id", id),
		zap.String("submission_id", sh.SubmissionID),
		zap.Int("correct", rep.Score.CorrectCount),
		zap.Int("wrong", rep.Score.WrongCount),
		zap.Int("keyed", rep.Score.TotalKeyed),
	)
	s.events("sheet_submitted")
	return &rep, nil
}

// Reset clears answers and the submitted flag. The key is kept.
func (s *Service) Reset(ctx context.Context, id string) (*Sheet, error) {
	return s.update(ctx, id, func(sh *Sheet) error {
		sh.Answers = AnswerMap{}
		sh.Submitted = false
		sh.SubmittedAt = nil
		sh.SubmissionID = ""
		return nil
	})
}

func (s *Service) Result(ctx context.Context, id string) (*Report, error) {
	sh, err := s.GetSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	rep := Reconcile(sh.Questions, sh.Answers, sh.Key, sh.Submitted)
	return &rep, nil
}

func (s *Service) update(ctx context.Context, id string, fn func(*Sheet) error) (*Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sh); err != nil {
		return nil, err
	}
	sh.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Service) load(ctx context.Context, id string) (*Sheet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSheetNotFound
	}
	blob, ok, err := s.store.Get(ctx, sheetKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("load sheet: %w", err)
	}
	if !ok {
		return nil, ErrSheetNotFound
	}
	var sh Sheet
	if err := json.Unmarshal(blob, &sh); err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	if sh.Answers == nil {
		sh.Answers = AnswerMap{}
	}
	if sh.Key == nil {
		sh.Key = answerkey.KeyMap{}
	}
	return &sh, nil
}

func (s *Service) save(ctx context.Context, sh *Sheet) error {
	blob, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}
	if err := s.store.Set(ctx, sheetKeyPrefix+sh.ID, blob); err != nil {
		return fmt.Errorf("save sheet: %w", err)
	}
	return nil
}

func (sh *Sheet) hasQuestion(id string) bool {
	for _, q := range sh.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
