package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/branchline/branchline/internal/platform/httpx"
	"github.com/branchline/branchline/internal/shared"
)

// IdempotencyStore guards replayed bulk operations.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the permission store, seeder and scope resolver over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	idem      IdempotencyStore
	guard     Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyStore, guard Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		idem:      idem,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountStaffRoutes registers the admin-facing permission editing surface.
func (h *Handler) MountStaffRoutes(r chi.Router) {
	r.Route("/{userID}/branches/{branchID}/permissions", func(r chi.Router) {
		r.Use(h.guard.RequireBranchPermission(PermStaffPermissions))
		r.Get("/", h.getPermissions)
		r.Put("/", h.savePermissions)
		r.Post("/defaults", h.applyDefaults)
	})
	r.Post("/{userID}/permissions/defaults", h.applyDefaultsBulk)
	r.Get("/{userID}/branch-scope", h.branchScope)
}

// MountSelfRoutes registers the "my view" surface. These read through the
// viewing identity, so an impersonating admin sees exactly what the viewed
// user would see.
func (h *Handler) MountSelfRoutes(r chi.Router) {
	r.Get("/permissions", h.myPermissions)
	r.Get("/branch-scope", h.myBranchScope)
}

type permissionsResponse struct {
	UserID    int64           `json:"user_id"`
	BranchID  int64           `json:"branch_id"`
	Granted   []string        `json:"granted"`
	Overrides int             `json:"overrides"`
	Role      string          `json:"role,omitempty"`
	Modules   []moduleSummary `json:"modules"`
}

type moduleSummary struct {
	Module  string `json:"module"`
	Total   int    `json:"total"`
	Granted int    `json:"granted"`
}

func (h *Handler) getPermissions(w http.ResponseWriter, r *http.Request) {
	userID, branchID, ok := pathUserBranch(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "user and branch IDs must be numeric")
		return
	}
	stored, err := h.service.Load(r.Context(), userID, branchID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	role, hasRole, err := h.service.HighestRoleOf(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := permissionsResponse{
		UserID:    userID,
		BranchID:  branchID,
		Granted:   stored.Keys(),
		Overrides: CountOverrides(role, stored),
		Modules:   summarize(h.service.Catalog(), stored),
	}
	if hasRole {
		resp.Role = string(role)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
	Snapshot    []string `json:"snapshot"`
}

func (h *Handler) savePermissions(w http.ResponseWriter, r *http.Request) {
	userID, branchID, ok := pathUserBranch(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "user and branch IDs must be numeric")
		return
	}
	actorID, ok := h.sessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.Save(r.Context(), SaveInput{
		ActorID:  actorID,
		UserID:   userID,
		BranchID: branchID,
		NewSet:   NewSet(req.Permissions...),
		Snapshot: NewSet(req.Snapshot...),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

type defaultsRequest struct {
	Role string `json:"role"`
}

func (h *Handler) applyDefaults(w http.ResponseWriter, r *http.Request) {
	userID, branchID, ok := pathUserBranch(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "user and branch IDs must be numeric")
		return
	}
	actorID, ok := h.sessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	var req defaultsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.ApplyDefaults(r.Context(), actorID, userID, branchID, Role(req.Role)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "seeded"})
}

type bulkDefaultsRequest struct {
	Role      string  `json:"role"`
	BranchIDs []int64 `json:"branch_ids" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) applyDefaultsBulk(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "user ID must be numeric")
		return
	}
	actorID, ok := h.sessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	var req bulkDefaultsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inserted := false
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, "authz.defaults"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.JSON(w, http.StatusOK, map[string]any{"status": "already_applied"})
				return
			}
			h.respondError(w, err)
			return
		}
		inserted = true
	}
	if err := h.service.ApplyDefaultsBulk(r.Context(), actorID, userID, req.BranchIDs, Role(req.Role)); err != nil {
		if inserted {
			// Release the key so a corrected retry is not swallowed as a replay.
			_ = h.idem.Delete(r.Context(), key)
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "seeded", "branches": len(req.BranchIDs)})
}

type scopeResponse struct {
	BrandWide bool    `json:"brand_wide"`
	Branches  []int64 `json:"branches"`
}

func (h *Handler) branchScope(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "user ID must be numeric")
		return
	}
	h.writeScope(w, r, userID)
}

// myPermissions renders the effective set for the viewing identity. While an
// impersonation session is active this is the viewed user's set.
func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewerID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch_id"), 10, 64)
	if err != nil || branchID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "branch_id must be a positive integer")
		return
	}
	stored, err := h.service.Load(r.Context(), viewer, branchID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	role, hasRole, err := h.service.HighestRoleOf(r.Context(), viewer)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := permissionsResponse{
		UserID:    viewer,
		BranchID:  branchID,
		Granted:   stored.Keys(),
		Overrides: CountOverrides(role, stored),
		Modules:   summarize(h.service.Catalog(), stored),
	}
	if hasRole {
		resp.Role = string(role)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) myBranchScope(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewerID(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	h.writeScope(w, r, viewer)
}

func (h *Handler) writeScope(w http.ResponseWriter, r *http.Request, userID int64) {
	scope, err := h.service.AllowedBranches(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := scopeResponse{BrandWide: scope.BrandWide, Branches: scope.Branches}
	if resp.Branches == nil {
		resp.Branches = []int64{}
	}
	httpx.JSON(w, http.StatusOK, resp)
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

// viewerID prefers the identity resolved by the impersonation middleware and
// falls back to the session user.
func (h *Handler) viewerID(r *http.Request) (int64, bool) {
	if viewer, ok := shared.ViewerFromContext(r.Context()); ok {
		return viewer, true
	}
	return h.sessionUserID(r)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidKey):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Permission Key", err.Error())
	case errors.Is(err, ErrNoRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Role Assigned", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrConcurrentModification):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("authz", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathUserBranch(r *http.Request) (int64, int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	branchID, err := strconv.ParseInt(chi.URLParam(r, "branchID"), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return userID, branchID, true
}

func summarize(catalog *Catalog, stored Set) []moduleSummary {
	src := catalog.Summarize(stored)
	out := make([]moduleSummary, 0, len(src))
	for _, s := range src {
		out = append(out, moduleSummary{Module: s.Module, Total: s.Total, Granted: s.Granted})
	}
	return out
}
