package audithttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/branchline/branchline/internal/audit"
	"github.com/branchline/branchline/internal/platform/httpx"
)

// Handler exposes the permission audit timeline as JSON.
type Handler struct {
	logger  *slog.Logger
	service *audit.Service
	guard   func(http.Handler) http.Handler
}

// NewHandler builds the audit timeline handler. The guard middleware is
// expected to reject callers without the reports capability.
func NewHandler(logger *slog.Logger, service *audit.Service, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard)
		}
		r.Get("/audit/permissions", h.timeline)
	})
}

type timelineRow struct {
	ID           int64    `json:"id"`
	ActorID      int64    `json:"actor_id"`
	TargetUserID int64    `json:"target_user_id"`
	BranchID     int64    `json:"branch_id"`
	Action       string   `json:"action"`
	Keys         []string `json:"permission_keys"`
	At           string   `json:"occurred_at"`
}

type timelineResponse struct {
	Rows     []timelineRow `json:"rows"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	HasNext  bool          `json:"has_next"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters := audit.TimelineFilters{
		ActorID:  queryInt64(r, "actor_id"),
		TargetID: queryInt64(r, "target_user_id"),
		BranchID: queryInt64(r, "branch_id"),
		Action:   r.URL.Query().Get("action"),
		Page:     int(queryInt64(r, "page")),
		PageSize: int(queryInt64(r, "page_size")),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.To = t
		}
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	rows := make([]timelineRow, 0, len(result.Rows))
	for _, e := range result.Rows {
		rows = append(rows, timelineRow{
			ID:           e.ID,
			ActorID:      e.ActorID,
			TargetUserID: e.TargetUserID,
			BranchID:     e.BranchID,
			Action:       string(e.Action),
			Keys:         e.Keys,
			At:           e.At.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Rows:     rows,
		Page:     result.Paging.Page,
		PageSize: result.Paging.PageSize,
		HasNext:  result.Paging.HasNext,
	})
}

func queryInt64(r *http.Request, key string) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
