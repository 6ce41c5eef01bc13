package authzhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/r2suporte/interalpha/internal/audit"
	"github.com/r2suporte/interalpha/internal/authz"
)

// MountRoutes registers the authorization surface on r. Decision endpoints
// are open to any identified service caller; administrative endpoints
// require the usuarios manage permission of the acting staff member.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.checkPermission)
	r.Post("/manage-check", h.manageCheck)
	r.Post("/rate-check", h.rateCheck)
	r.Get("/permissions/{userID}", h.effectivePermissions)

	r.Group(func(r chi.Router) {
		r.Use(h.RequirePermission(authz.ResourceUsuarios, authz.ActionManage))
		r.Post("/custom-permissions", h.grantCustomPermission)
		r.Delete("/custom-permissions/{userID}/{resource}/{action}", h.revokeCustomPermission)
		r.Get("/audit/timeline", h.auditTimeline)
	})
}

func timelineFilters(r *http.Request) audit.TimelineFilters {
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		Actor:    q.Get("actor"),
		Resource: q.Get("resource"),
		Result:   q.Get("result"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		filters.PageSize = v
	}
	if t, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = t
	}
	return filters
}
