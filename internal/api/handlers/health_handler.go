package handlers

import (
	"context"
	"net/http"
	"time"
)

// ModelStatus reports the failover state of the summarization client.
// TestModel is only called when the request asks for ?check=1.
type ModelStatus interface {
	CurrentModel() string
	ServiceAvailable() bool
	AvailableModels() []string
	TestModel(ctx context.Context) bool
}

type HealthHandler struct {
	models ModelStatus
	now    func() time.Time
}

func NewHealthHandler(models ModelStatus) *HealthHandler {
	return &HealthHandler{models: models, now: time.Now}
}

type aiStatus struct {
	CurrentModel     string   `json:"currentModel"`
	ServiceAvailable bool     `json:"serviceAvailable"`
	Models           []string `json:"models"`
	ModelCheck       *bool    `json:"modelCheck,omitempty"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	AI        aiStatus `json:"ai"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ai := aiStatus{
		CurrentModel:     h.models.CurrentModel(),
		ServiceAvailable: h.models.ServiceAvailable(),
		Models:           h.models.AvailableModels(),
	}
	if r.URL.Query().Get("check") == "1" {
		ok := h.models.TestModel(r.Context())
		ai.ModelCheck = &ok
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Message:   "Document Summary API is running",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		AI:        ai,
	})
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Route not found"})
}
