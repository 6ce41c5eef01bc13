package authzhttp

import (
	"log/slog"
	"net/http"

	"github.com/r2suporte/interalpha/internal/authz"
	"github.com/r2suporte/interalpha/internal/platform/httpx"
	"github.com/r2suporte/interalpha/internal/shared"
)

// RequirePermission gates a route on a full engine decision for the acting
// staff member. The actor comes from the upstream-auth headers; requests
// without an identified actor are rejected outright.
func (h *Handler) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor identity presented")
				return
			}

			pctx := authz.PermissionContext{
				ActorID: actor.ID,
				Metadata: authz.RequestMetadata{
					IPAddress: r.RemoteAddr,
					UserAgent: r.UserAgent(),
				},
			}
			result := h.engine.CheckPermission(r.Context(), actor.ID, authz.Role(actor.Role), resource, action, pctx)
			h.metrics.RecordDecision(result.Audit.Result, resource)
			if !result.Allowed {
				h.logger.Warn("request forbidden",
					slog.String("actor_id", actor.ID),
					slog.String("resource", resource),
					slog.String("action", action),
					slog.String("reason", result.Reason))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", result.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
