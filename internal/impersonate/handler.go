package impersonate

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/branchline/branchline/internal/platform/httpx"
	"github.com/branchline/branchline/internal/shared"
)

// Handler wires the impersonation endpoints.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{logger: logger, manager: manager, validator: validator.New()}
}

// MountRoutes registers impersonation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.current)
	r.Post("/start", h.start)
	r.Post("/stop", h.stop)
}

type startRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type stateResponse struct {
	Active       bool   `json:"active"`
	ViewedUserID int64  `json:"viewed_user_id,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.sessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	state, err := h.manager.Start(r.Context(), actorID, req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{
		Active:       true,
		ViewedUserID: state.ViewedUserID,
		StartedAt:    state.StartedAt.Format(time.RFC3339),
	})
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.sessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	if err := h.manager.End(r.Context(), actorID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{Active: false})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.sessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	state, err := h.manager.Active(r.Context(), actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if state == nil {
		httpx.JSON(w, http.StatusOK, stateResponse{Active: false})
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{
		Active:       true,
		ViewedUserID: state.ViewedUserID,
		StartedAt:    state.StartedAt.Format(time.RFC3339),
	})
}

func (h *Handler) sessionUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotPermitted):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidTarget):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Target", err.Error())
	default:
		h.logger.Error("impersonation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
