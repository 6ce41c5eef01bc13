// Package authz implements the InterAlpha authorization decision engine:
// role-based permission resolution, per-user custom permission overlays,
// contextual business rules and mandatory audit emission for every decision.
package authz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role identifies one of the closed set of staff roles.
type Role string

const (
	// RoleAtendente is the front-desk role.
	RoleAtendente Role = "atendente"
	// RoleTecnico is the field/bench technician role.
	RoleTecnico Role = "tecnico"
	// RoleSupervisorTecnico supervises technicians.
	RoleSupervisorTecnico Role = "supervisor_tecnico"
	// RoleGerenteFinanceiro manages finance operations.
	RoleGerenteFinanceiro Role = "gerente_financeiro"
	// RoleGerenteAdministrativo is the top administrative role.
	RoleGerenteAdministrativo Role = "gerente_administrativo"
)

// Resources gated by the engine. ResourceAll is the wildcard and matches
// any resource when it appears in a permission.
const (
	ResourceAll           = "*"
	ResourceClientes      = "clientes"
	ResourceOrdensServico = "ordens_servico"
	ResourcePagamentos    = "pagamentos"
	ResourceEstoque       = "estoque"
	ResourceRelatorios    = "relatorios"
	ResourceUsuarios      = "usuarios"
)

// Actions recognised by the engine.
const (
	ActionRead    = "read"
	ActionList    = "list"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionEstorno = "estorno"
	ActionManage  = "manage"
)

// Conditions constrains a permission grant. A zero-value Conditions is
// unconditional; optional numeric constraints use pointers so that "absent"
// and "zero" stay distinguishable.
type Conditions struct {
	OwnOnly     bool
	MaxValue    *float64
	Departments []string
}

// Permission grants a single action on a resource, optionally constrained.
type Permission struct {
	Resource   string
	Action     string
	Conditions *Conditions
}

// CustomPermissionEffect says whether a custom entry grants or denies.
type CustomPermissionEffect string

const (
	// EffectAllow grants the pair beyond the role defaults.
	EffectAllow CustomPermissionEffect = "allow"
	// EffectDeny revokes the pair even when the role grants it.
	EffectDeny CustomPermissionEffect = "deny"
)

// CustomPermission is a per-user exception that overrides the role default
// for one exact resource+action pair. Entries are maintained by the
// administrative workflow; the engine only reads them.
type CustomPermission struct {
	UserID     string
	Resource   string
	Action     string
	Effect     CustomPermissionEffect
	Conditions *Conditions
}

// RequestMetadata carries transport-level request details for the audit trail.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
	Timestamp time.Time
}

// PermissionContext is the per-request context a decision is evaluated
// against. Optional fields are empty strings or nil pointers when absent.
type PermissionContext struct {
	ActorID      string
	OwnerID      string
	Department   string
	Value        *float64
	ResourceID   string
	ResourceData map[string]any
	Metadata     RequestMetadata
}

// Decision outcomes recorded in audit entries.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
)

// Denial reasons returned to callers. Business rules produce their own
// specific reasons; everything else uses one of these fixed strings.
const (
	ReasonInsufficientRole = "insufficient role permissions"
	ReasonCustomDeny       = "custom permissions deny access"
	ReasonInternalError    = "permission check error"
	ReasonInactiveUser     = "user account is inactive"
	ReasonOutsideHours     = "service orders are only readable during business hours"
)

// Denial kinds attached to audit metadata for operator diagnosis.
const (
	KindInsufficientRole = "insufficient_role_permission"
	KindCustomDeny       = "custom_permission_denied"
	KindBusinessRule     = "business_rule_violation"
	KindInternalError    = "internal_evaluation_error"
)

// AuditEntry records one authorization decision. Entries are immutable after
// creation; ownership passes to the audit sink on emission.
type AuditEntry struct {
	ID       uuid.UUID
	ActorID  string
	Action   string // "<action>:<resource>"
	Resource string
	Result   string
	Reason   string
	At       time.Time
	Metadata map[string]any
}

// PermissionResult is the outcome of a permission check. It is populated on
// every path, including internal evaluation errors.
type PermissionResult struct {
	Allowed bool
	Reason  string
	Audit   AuditEntry
}

// ErrUserNotFound is returned by Directory implementations when the user
// does not exist.
var ErrUserNotFound = errors.New("authz: user not found")

// Directory resolves staff identity attributes. Implementations own their
// consistency and caching guarantees.
type Directory interface {
	GetRole(ctx context.Context, userID string) (Role, error)
	IsActive(ctx context.Context, userID string) (bool, error)
}

// CustomPermissionStore reads per-user permission exceptions.
type CustomPermissionStore interface {
	GetCustomPermissions(ctx context.Context, userID string) ([]CustomPermission, error)
}

// Sink receives every audit entry. Record must not block the request path;
// buffering and delivery guarantees belong to the implementation.
type Sink interface {
	Record(ctx context.Context, entry AuditEntry)
}
