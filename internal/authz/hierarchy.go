package authz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// HierarchyChecker answers administrative management queries: whether one
// staff member may manage another's account. It uses only hierarchy levels
// and the self-management exception, never resource permissions.
type HierarchyChecker struct {
	registry  *Registry
	directory Directory
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time
}

// NewHierarchyChecker builds a checker. sink may not be nil; management
// queries are audited like permission checks.
func NewHierarchyChecker(registry *Registry, directory Directory, sink Sink, logger *slog.Logger) *HierarchyChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyChecker{registry: registry, directory: directory, sink: sink, logger: logger, now: time.Now}
}

// CanManageUser reports whether managerID acting as managerRole may manage
// targetID. Self-management is always allowed; otherwise the manager's
// hierarchy level must be strictly greater than the target's. Unknown
// targets, unknown roles and directory failures all resolve to false.
func (h *HierarchyChecker) CanManageUser(ctx context.Context, managerID string, managerRole Role, targetID string) bool {
	allowed, reason := h.decide(ctx, managerID, managerRole, targetID)

	entry := AuditEntry{
		ID:       uuid.New(),
		ActorID:  managerID,
		Action:   ActionManage + ":" + ResourceUsuarios,
		Resource: ResourceUsuarios,
		Result:   ResultDenied,
		Reason:   reason,
		At:       h.now().UTC(),
		Metadata: map[string]any{"target_id": targetID},
	}
	if allowed {
		entry.Result = ResultAllowed
	}
	h.sink.Record(ctx, entry)

	return allowed
}

func (h *HierarchyChecker) decide(ctx context.Context, managerID string, managerRole Role, targetID string) (bool, string) {
	if managerID == targetID {
		return true, ""
	}

	targetRole, err := h.directory.GetRole(ctx, targetID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("resolve target role",
				slog.String("target_id", targetID),
				slog.Any("error", err))
		}
		return false, "target user not found"
	}

	managerLevel, ok := h.registry.HierarchyLevel(managerRole)
	if !ok {
		return false, ReasonInternalError
	}
	targetLevel, ok := h.registry.HierarchyLevel(targetRole)
	if !ok {
		return false, ReasonInternalError
	}
	if managerLevel > targetLevel {
		return true, ""
	}
	return false, "manager rank does not exceed target rank"
}
