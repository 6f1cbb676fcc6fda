package question

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cbtscan/internal/app/apiresp"
)

// Handler exposes the canonicalizer and parser over HTTP. It keeps no state.
type Handler struct {
	maxBodyBytes int64
}

type textRequest struct {
	Text string `json:"text"`
}

type canonicalResponse struct {
	Text  string `json:"text"`
	Steps []Step `json:"steps,omitempty"`
}

type parseResponse struct {
	Count            int        `json:"count"`
	Questions        []Question `json:"questions"`
	DuplicateNumbers []int      `json:"duplicate_numbers,omitempty"`
	Unselectable     []string   `json:"unselectable,omitempty"`
}

func NewHandler(maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 << 20
	}
	return &Handler{maxBodyBytes: maxBodyBytes}
}

// Canonicalize returns the canonical text. With ?trace=1 the output of every
// pass is included.
func (h *Handler) Canonicalize(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}
	res := canonicalResponse{Text: Canonicalize(text)}
	if trace, _ := strconv.ParseBool(r.URL.Query().Get("trace")); trace {
		res.Steps = Trace(text)
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}
	qs := ParseText(text)
	res := parseResponse{
		Count:            len(qs),
		Questions:        qs,
		DuplicateNumbers: DuplicateNumbers(qs),
	}
	for _, q := range qs {
		if !q.Selectable() {
			res.Unselectable = append(res.Unselectable, q.ID)
		}
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func (h *Handler) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return req.Text, true
}
