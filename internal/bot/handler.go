package bot

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/smmstore/commerce-bot/internal/domain"
)

// Handler exposes the instance manager over HTTP for the dashboard side.
type Handler struct {
	manager *Manager
	catalog domain.Catalog
	logger  *slog.Logger
}

func NewHandler(manager *Manager, catalog domain.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		catalog: catalog,
		logger:  logger,
	}
}

type startBotRequest struct {
	Token string `json:"token"`
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		h.writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.manager.Start(req.Token, h.catalog); err != nil {
		h.logger.Error("failed to start bot instance", "error", err)
		h.writeError(w, http.StatusBadGateway, "could not start bot")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"running": h.manager.IsRunning(req.Token),
	})
}

func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		h.writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := h.manager.Stop(token); err != nil {
		if errors.Is(err, ErrNotRunning) {
			h.writeError(w, http.StatusNotFound, "bot not running")
			return
		}
		h.logger.Error("failed to stop bot instance", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"active": h.manager.ActiveCount(),
	})
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
