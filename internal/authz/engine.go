package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Engine is the decision orchestrator. It composes the permission resolver,
// the custom permission overlay and the business rule evaluator in a fixed
// order, short-circuits on the first denial and emits exactly one audit
// entry per decision. Internal errors fail closed.
type Engine struct {
	registry *Registry
	resolver *Resolver
	overlay  *Overlay
	rules    *RuleEvaluator
	store    CustomPermissionStore
	sink     Sink
	logger   *slog.Logger
	now      func() time.Time
}

// EngineConfig collects the engine's collaborators.
type EngineConfig struct {
	Registry  *Registry
	Directory Directory
	Store     CustomPermissionStore
	Sink      Sink
	Hours     BusinessHours
	Logger    *slog.Logger
}

// NewEngine wires a decision engine from its collaborators.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: cfg.Registry,
		resolver: NewResolver(cfg.Registry),
		overlay:  NewOverlay(cfg.Store),
		rules:    NewRuleEvaluator(cfg.Registry, cfg.Directory, cfg.Hours),
		store:    cfg.Store,
		sink:     cfg.Sink,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckPermission decides whether actorID acting as role may perform action
// on resource. Every call produces exactly one audit entry, emitted before
// the result is returned; collaborator failures and panics become denials
// with ReasonInternalError, with the cause recorded only in the audit
// metadata.
func (e *Engine) CheckPermission(ctx context.Context, actorID string, role Role, resource, action string, pctx PermissionContext) PermissionResult {
	allowed, reason, meta := e.evaluate(ctx, actorID, role, resource, action, pctx)

	entry := AuditEntry{
		ID:       uuid.New(),
		ActorID:  actorID,
		Action:   action + ":" + resource,
		Resource: resource,
		Result:   ResultDenied,
		Reason:   reason,
		At:       e.now().UTC(),
		Metadata: meta,
	}
	if allowed {
		entry.Result = ResultAllowed
	}
	if ip := pctx.Metadata.IPAddress; ip != "" {
		entry.Metadata = withMeta(entry.Metadata, "ip_address", ip)
	}
	if ua := pctx.Metadata.UserAgent; ua != "" {
		entry.Metadata = withMeta(entry.Metadata, "user_agent", ua)
	}
	e.sink.Record(ctx, entry)

	return PermissionResult{Allowed: allowed, Reason: reason, Audit: entry}
}

// evaluate runs the three stages and converts every failure mode into a
// denial. The named results let the deferred recover rewrite them when a
// stage panics.
func (e *Engine) evaluate(ctx context.Context, actorID string, role Role, resource, action string, pctx PermissionContext) (allowed bool, reason string, meta map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("permission check panicked",
				slog.String("actor_id", actorID),
				slog.String("resource", resource),
				slog.String("action", action),
				slog.Any("panic", rec))
			allowed = false
			reason = ReasonInternalError
			meta = map[string]any{"kind": KindInternalError, "cause": fmt.Sprint(rec)}
		}
	}()

	if _, ok := e.registry.Definition(role); !ok {
		return false, ReasonInternalError, map[string]any{"kind": KindInternalError, "cause": fmt.Sprintf("unknown role %q", role)}
	}

	if !e.resolver.Allowed(role, resource, action, pctx) {
		return false, ReasonInsufficientRole, map[string]any{"kind": KindInsufficientRole}
	}

	verdict, err := e.overlay.Evaluate(ctx, actorID, resource, action, pctx)
	if err != nil {
		return false, ReasonInternalError, map[string]any{"kind": KindInternalError, "cause": err.Error()}
	}
	if verdict == VerdictDeny {
		return false, ReasonCustomDeny, map[string]any{"kind": KindCustomDeny}
	}

	ok, ruleReason, err := e.rules.Evaluate(ctx, actorID, role, resource, action, pctx)
	if err != nil {
		return false, ReasonInternalError, map[string]any{"kind": KindInternalError, "cause": err.Error()}
	}
	if !ok {
		return false, ruleReason, map[string]any{"kind": KindBusinessRule}
	}

	return true, "", nil
}

// EffectivePermissions merges the role's base permission set with the user's
// custom permissions: a custom entry wins on its exact resource+action pair,
// deny entries remove the pair and allow entries add or replace it. The
// result is for capability introspection, never enforcement.
func (e *Engine) EffectivePermissions(ctx context.Context, userID string, role Role) ([]Permission, error) {
	customs, err := e.store.GetCustomPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: effective permissions for %s: %w", userID, err)
	}

	type pair struct{ resource, action string }
	merged := make(map[pair]Permission)
	for _, perm := range e.registry.Permissions(role) {
		merged[pair{perm.Resource, perm.Action}] = perm
	}
	for _, custom := range customs {
		key := pair{custom.Resource, custom.Action}
		if custom.Effect == EffectDeny {
			delete(merged, key)
			continue
		}
		merged[key] = Permission{Resource: custom.Resource, Action: custom.Action, Conditions: custom.Conditions}
	}

	perms := make([]Permission, 0, len(merged))
	for _, perm := range merged {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Resource != perms[j].Resource {
			return perms[i].Resource < perms[j].Resource
		}
		return perms[i].Action < perms[j].Action
	})
	return perms, nil
}

func withMeta(meta map[string]any, key string, value any) map[string]any {
	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta[key] = value
	return meta
}
