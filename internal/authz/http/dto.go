package authzhttp

import (
	"time"

	"github.com/r2suporte/interalpha/internal/authz"
)

// ContextPayload mirrors authz.PermissionContext on the wire. Optional
// fields stay pointers or empty strings so "absent" survives decoding.
type ContextPayload struct {
	OwnerID      string         `json:"ownerId,omitempty"`
	Department   string         `json:"department,omitempty"`
	Value        *float64       `json:"value,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	ResourceData map[string]any `json:"resourceData,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitempty"`
}

// CheckRequest asks for one authorization decision.
type CheckRequest struct {
	ActorID  string         `json:"actorId" validate:"required"`
	Role     string         `json:"role" validate:"required"`
	Resource string         `json:"resource" validate:"required"`
	Action   string         `json:"action" validate:"required"`
	Context  ContextPayload `json:"context"`
}

// CheckResponse is the decision returned to the caller. The audit detail
// stays in the audit trail; callers only see the verdict and reason.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ManageCheckRequest asks whether a manager may manage a target account.
type ManageCheckRequest struct {
	ManagerID   string `json:"managerId" validate:"required"`
	ManagerRole string `json:"managerRole" validate:"required"`
	TargetID    string `json:"targetId" validate:"required"`
}

// ManageCheckResponse is the management verdict.
type ManageCheckResponse struct {
	Allowed bool `json:"allowed"`
}

// RateCheckRequest asks whether an actor is within their request budget.
type RateCheckRequest struct {
	ActorID string `json:"actorId" validate:"required"`
	Role    string `json:"role" validate:"required"`
}

// RateCheckResponse is the rate-limit verdict.
type RateCheckResponse struct {
	Allowed bool `json:"allowed"`
}

// PermissionView is one effective permission for capability introspection.
type PermissionView struct {
	Resource    string   `json:"resource"`
	Action      string   `json:"action"`
	OwnOnly     bool     `json:"ownOnly,omitempty"`
	MaxValue    *float64 `json:"maxValue,omitempty"`
	Departments []string `json:"departments,omitempty"`
}

// GrantRequest creates a custom permission entry.
type GrantRequest struct {
	UserID      string   `json:"userId" validate:"required"`
	Resource    string   `json:"resource" validate:"required"`
	Action      string   `json:"action" validate:"required"`
	Effect      string   `json:"effect" validate:"required,oneof=allow deny"`
	OwnOnly     bool     `json:"ownOnly,omitempty"`
	MaxValue    *float64 `json:"maxValue,omitempty"`
	Departments []string `json:"departments,omitempty"`
}

func toPermissionContext(actorID string, payload ContextPayload, ip, userAgent string) authz.PermissionContext {
	return authz.PermissionContext{
		ActorID:      actorID,
		OwnerID:      payload.OwnerID,
		Department:   payload.Department,
		Value:        payload.Value,
		ResourceID:   payload.ResourceID,
		ResourceData: payload.ResourceData,
		Metadata: authz.RequestMetadata{
			IPAddress: ip,
			UserAgent: userAgent,
			Timestamp: payload.Timestamp,
		},
	}
}

func toPermissionViews(perms []authz.Permission) []PermissionView {
	views := make([]PermissionView, 0, len(perms))
	for _, perm := range perms {
		view := PermissionView{Resource: perm.Resource, Action: perm.Action}
		if perm.Conditions != nil {
			view.OwnOnly = perm.Conditions.OwnOnly
			view.MaxValue = perm.Conditions.MaxValue
			view.Departments = perm.Conditions.Departments
		}
		views = append(views, view)
	}
	return views
}
