// Package authzhttp exposes the decision engine to the other InterAlpha
// services as a thin JSON surface. Authentication happens upstream; the
// engine only sees already-identified actors.
package authzhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/r2suporte/interalpha/internal/audit"
	"github.com/r2suporte/interalpha/internal/authz"
	"github.com/r2suporte/interalpha/internal/observability"
	"github.com/r2suporte/interalpha/internal/platform/httpx"
	"github.com/r2suporte/interalpha/internal/ratelimit"
)

// AdminStore is the write half of the custom permission store, used by the
// administrative endpoints.
type AdminStore interface {
	Grant(ctx context.Context, perm authz.CustomPermission) error
	Revoke(ctx context.Context, userID, resource, action string) error
}

// Handler serves the authorization endpoints.
type Handler struct {
	logger    *slog.Logger
	engine    *authz.Engine
	hierarchy *authz.HierarchyChecker
	limiter   *ratelimit.Limiter
	admin     AdminStore
	timeline  *audit.Service
	metrics   *observability.Metrics
	validate  *validator.Validate
}

// HandlerConfig collects the handler's dependencies.
type HandlerConfig struct {
	Logger    *slog.Logger
	Engine    *authz.Engine
	Hierarchy *authz.HierarchyChecker
	Limiter   *ratelimit.Limiter
	Admin     AdminStore
	Timeline  *audit.Service
	Metrics   *observability.Metrics
}

// NewHandler builds a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		engine:    cfg.Engine,
		hierarchy: cfg.Hierarchy,
		limiter:   cfg.Limiter,
		admin:     cfg.Admin,
		timeline:  cfg.Timeline,
		metrics:   cfg.Metrics,
		validate:  validator.New(),
	}
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), req.ActorID, authz.Role(req.Role))
	if err != nil {
		h.logger.Warn("rate limiter degraded", slog.Any("error", err))
	}
	if !allowed {
		h.metrics.RecordRateLimited()
		httpx.Problem(w, http.StatusTooManyRequests, "Rate Limit Exceeded", "request budget exhausted for actor")
		return
	}

	pctx := toPermissionContext(req.ActorID, req.Context, r.RemoteAddr, r.UserAgent())
	result := h.engine.CheckPermission(r.Context(), req.ActorID, authz.Role(req.Role), req.Resource, req.Action, pctx)
	h.metrics.RecordDecision(result.Audit.Result, req.Resource)

	httpx.JSON(w, http.StatusOK, CheckResponse{Allowed: result.Allowed, Reason: result.Reason})
}

func (h *Handler) manageCheck(w http.ResponseWriter, r *http.Request) {
	var req ManageCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	allowed := h.hierarchy.CanManageUser(r.Context(), req.ManagerID, authz.Role(req.ManagerRole), req.TargetID)
	httpx.JSON(w, http.StatusOK, ManageCheckResponse{Allowed: allowed})
}

func (h *Handler) rateCheck(w http.ResponseWriter, r *http.Request) {
	var req RateCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), req.ActorID, authz.Role(req.Role))
	if err != nil && !errors.Is(err, ratelimit.ErrUnknownRole) {
		h.logger.Warn("rate limiter degraded", slog.Any("error", err))
	}
	if !allowed {
		h.metrics.RecordRateLimited()
	}
	httpx.JSON(w, http.StatusOK, RateCheckResponse{Allowed: allowed})
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	role := r.URL.Query().Get("role")
	if userID == "" || role == "" {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "userID and role are required"))
		return
	}

	perms, err := h.engine.EffectivePermissions(r.Context(), userID, authz.Role(role))
	if err != nil {
		h.logger.Error("effective permissions", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionViews(perms))
}

func (h *Handler) grantCustomPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	perm := authz.CustomPermission{
		UserID:   req.UserID,
		Resource: req.Resource,
		Action:   req.Action,
		Effect:   authz.CustomPermissionEffect(req.Effect),
	}
	if req.OwnOnly || req.MaxValue != nil || len(req.Departments) > 0 {
		perm.Conditions = &authz.Conditions{OwnOnly: req.OwnOnly, MaxValue: req.MaxValue, Departments: req.Departments}
	}
	if err := h.admin.Grant(r.Context(), perm); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handler) revokeCustomPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	resource := chi.URLParam(r, "resource")
	action := chi.URLParam(r, "action")
	if err := h.admin.Revoke(r.Context(), userID, resource, action); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) auditTimeline(w http.ResponseWriter, r *http.Request) {
	filters := timelineFilters(r)
	result, err := h.timeline.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
