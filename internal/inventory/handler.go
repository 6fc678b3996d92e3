package inventory

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler is the out-of-band stocking surface: operators load credential
// units and watch availability here, never through the bot flow.
type Handler struct {
	repo   *InventoryRepository
	logger *slog.Logger
}

func NewHandler(repo *InventoryRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type addUnitRequest struct {
	Login  string `json:"login"`
	Secret string `json:"secret"`
}

func (h *Handler) HandleAddUnit(w http.ResponseWriter, r *http.Request) {
	var req addUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Login == "" || req.Secret == "" {
		h.writeError(w, http.StatusBadRequest, "login and secret are required")
		return
	}

	unit, err := h.repo.Add(r.Context(), req.Login, req.Secret)
	if err != nil {
		h.logger.Error("failed to add inventory unit", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("inventory unit added", "unit_id", unit.ID)
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": unit.ID})
}

func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.CountAvailable(r.Context())
	if err != nil {
		h.logger.Error("failed to count available units", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"available": count})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
