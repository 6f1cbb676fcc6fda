package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"cbtscan/internal/answerkey"
	"cbtscan/internal/app/apiresp"
	"cbtscan/internal/textsource"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultMaxUploadBytes = 10 << 20

type Handler struct {
	svc            sheetService
	extractor      documentExtractor
	maxUploadBytes int64
	log            *zap.Logger
}

type sheetService interface {
	LoadDocument(ctx context.Context, name, raw string) (*LoadResult, error)
	GetSheet(ctx context.Context, id string) (*Sheet, error)
	SetAnswer(ctx context.Context, id, questionID, choice string) (*Sheet, error)
	ClearAnswer(ctx context.Context, id, questionID string) (*Sheet, error)
	SetKey(ctx context.Context, id, questionID, choice string) (*Sheet, error)
	ImportKey(ctx context.Context, id, format string, doc []byte) (*answerkey.ImportReport, error)
	ExportKey(ctx context.Context, id string) (map[string]string, error)
	Submit(ctx context.Context, id string) (*Report, error)
	Reset(ctx context.Context, id string) (*Sheet, error)
	Result(ctx context.Context, id string) (*Report, error)
}

type documentExtractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type loadDocumentRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

func NewHandler(svc sheetService, extractor documentExtractor, maxUploadBytes int64, log *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, extractor: extractor, maxUploadBytes: maxUploadBytes, log: log}
}

// LoadDocument accepts either a JSON body {name, text} or a multipart upload
// in field "file", which is run through the text extractor first.
func (h *Handler) LoadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var name, text string
	if isMultipart(r) {
		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeBodyError(w, r, err, "file is required")
			return
		}
		defer file.Close()
		if h.extractor == nil {
			writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: textsource.ErrExtractorMissing.Error()})
			return
		}
		name = header.Filename
		text, err = h.extractor.Extract(r.Context(), header.Filename, file)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	} else {
		var req loadDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeBodyError(w, r, err, "invalid request body")
			return
		}
		name, text = req.Name, req.Text
	}

	res, err := h.svc.LoadDocument(r.Context(), name, text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Restored {
		code = http.StatusOK
	}
	writeJSON(w, r, code, response{OK: true, Data: res})
}

func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	sh, err := h.svc.GetSheet(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sh})
}

func (h *Handler) SetAnswer(w http.ResponseWriter, r *http.Request) {
	h.setChoice(w, r, h.svc.SetAnswer)
}

func (h *Handler) ClearAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	sh, err := h.svc.ClearAnswer(r.Context(), id, chi.URLParam(r, "questionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sh})
}

func (h *Handler) SetKey(w http.ResponseWriter, r *http.Request) {
	h.setChoice(w, r, h.svc.SetKey)
}

func (h *Handler) ClearKey(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	sh, err := h.svc.SetKey(r.Context(), id, chi.URLParam(r, "questionID"), "")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sh})
}

// ImportKey reads the key document from a multipart "file" field or from the
// raw body. The format comes from ?format=, then the file extension, then
// the content type.
func (h *Handler) ImportKey(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	var (
		doc []byte
		err error
	)
	if isMultipart(r) {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			h.writeBodyError(w, r, ferr, "file is required")
			return
		}
		defer file.Close()
		if format == "" {
			format = filepath.Ext(header.Filename)
		}
		doc, err = io.ReadAll(file)
	} else {
		if format == "" {
			format = formatFromContentType(r.Header.Get("Content-Type"))
		}
		doc, err = io.ReadAll(r.Body)
	}
	if err != nil {
		h.writeBodyError(w, r, err, "invalid request body")
		return
	}

	report, err := h.svc.ImportKey(r.Context(), id, format, doc)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: report})
}

// ExportKey writes the flat key document as a download.
func (h *Handler) ExportKey(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	format := answerkey.NormalizeFormat(r.URL.Query().Get("format"))
	if format != answerkey.FormatJSON && format != answerkey.FormatXLSX {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "format must be json or xlsx"})
		return
	}

	flat, err := h.svc.ExportKey(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case answerkey.FormatXLSX:
		body, err = answerkey.ExportXLSX(flat)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		body, err = answerkey.ExportJSON(flat)
		contentType = "application/json"
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteAttachment(w, http.StatusOK, contentType, fmt.Sprintf("dap-an-%s.%s", id, format), body)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Submit(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: rep})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	sh, err := h.svc.Reset(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sh})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Result(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: rep})
}

func (h *Handler) setChoice(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id, questionID, choice string) (*Sheet, error)) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Choice) == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: ErrInvalidChoice.Error()})
		return
	}
	sh, err := apply(r.Context(), id, chi.URLParam(r, "questionID"), req.Choice)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sh})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrSheetNotFound), errors.Is(err, ErrQuestionNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSheetSubmitted):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrInvalidChoice),
		errors.Is(err, ErrEmptyDocument),
		errors.Is(err, answerkey.ErrUnsupportedFormat),
		errors.Is(err, textsource.ErrUnsupportedFormat):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, answerkey.ErrMalformedKeyDocument),
		errors.Is(err, textsource.ErrExtractorMissing):
		writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: err.Error()})
	case errors.As(err, &maxErr):
		writeJSON(w, r, http.StatusRequestEntityTooLarge, response{OK: false, Error: "upload too large"})
	default:
		h.log.Error("sheet request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

// writeBodyError answers 413 when the body hit the upload limit and 400 with
// msg for any other read or decode failure.
func (h *Handler) writeBodyError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: msg})
}

func sheetIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || !isHex(id) {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid sheet id"})
		return "", false
	}
	return id, true
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func isMultipart(r *http.Request) bool {
	return mediaType(r.Header.Get("Content-Type")) == "multipart/form-data"
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

// formatFromContentType only trusts content types naming a key format;
// anything else falls back to JSON.
func formatFromContentType(contentType string) string {
	switch f := answerkey.NormalizeFormat(mediaType(contentType)); f {
	case answerkey.FormatYAML, answerkey.FormatXLSX:
		return f
	default:
		return answerkey.FormatJSON
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
