package report

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cbtscan/internal/app/apiresp"
	"cbtscan/internal/exam"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	sum, err := h.svc.SummaryBySheet(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, sum)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	body, err := h.svc.ExportXLSX(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiresp.WriteAttachment(w, http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("ket-qua-%s.xlsx", id), body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, exam.ErrSheetNotFound) {
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		return
	}
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}
