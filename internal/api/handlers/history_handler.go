package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/Digesta/internal/models"
	"github.com/markdave123-py/Digesta/internal/services"
)

type HistoryHandler struct {
	svc *services.SummaryService
}

func NewHistoryHandler(svc *services.SummaryService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

func (h *HistoryHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	items, pagination, err := h.svc.List(r.Context(), models.SummaryQuery{Page: page, Limit: limit, Search: q.Get("search")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"summaries":  items,
		"pagination": pagination,
	})
}

func (h *HistoryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": sum})
}

func (h *HistoryHandler) DeleteSummary(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Summary deleted successfully"})
}

// GetOriginal streams the archived upload a summary was produced from.
func (h *HistoryHandler) GetOriginal(w http.ResponseWriter, r *http.Request) {
	sum, data, err := h.svc.Original(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	ctype := sum.FileType
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if name := sum.OriginalName; name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
