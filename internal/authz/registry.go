package authz

import "time"

// RateBudget is the request allowance for one role within a rolling window.
type RateBudget struct {
	Requests int
	Window   time.Duration
}

// RoleDefinition binds a role to its hierarchy level, base permission set,
// approval ceiling and rate budget.
type RoleDefinition struct {
	Role           Role
	HierarchyLevel int
	Permissions    []Permission
	// ApprovalCeiling caps approve actions on pagamentos. Nil means
	// unlimited; roles without an approve grant never reach the ceiling.
	ApprovalCeiling *float64
	RateBudget      RateBudget
}

// Registry is the immutable role table. It is constructed once at startup
// and passed explicitly to every component that needs it; accessors return
// copies so callers cannot mutate the table.
type Registry struct {
	definitions map[Role]RoleDefinition
}

func ceiling(v float64) *float64 { return &v }

// NewRegistry builds the registry with the InterAlpha role table.
func NewRegistry() *Registry {
	minute := time.Minute
	defs := []RoleDefinition{
		{
			Role:           RoleAtendente,
			HierarchyLevel: 1,
			Permissions: []Permission{
				{Resource: ResourceClientes, Action: ActionRead},
				{Resource: ResourceClientes, Action: ActionList},
				{Resource: ResourceClientes, Action: ActionCreate},
				{Resource: ResourceClientes, Action: ActionUpdate},
				{Resource: ResourceOrdensServico, Action: ActionRead},
				{Resource: ResourceOrdensServico, Action: ActionCreate},
				{Resource: ResourcePagamentos, Action: ActionRead},
				{Resource: ResourcePagamentos, Action: ActionApprove},
			},
			ApprovalCeiling: ceiling(100),
			RateBudget:      RateBudget{Requests: 60, Window: minute},
		},
		{
			Role:           RoleTecnico,
			HierarchyLevel: 2,
			Permissions: []Permission{
				{Resource: ResourceOrdensServico, Action: ActionRead},
				{Resource: ResourceOrdensServico, Action: ActionUpdate, Conditions: &Conditions{OwnOnly: true}},
				{Resource: ResourceEstoque, Action: ActionRead},
			},
			RateBudget: RateBudget{Requests: 120, Window: minute},
		},
		{
			Role:           RoleSupervisorTecnico,
			HierarchyLevel: 3,
			Permissions: []Permission{
				{Resource: ResourceOrdensServico, Action: ActionRead},
				{Resource: ResourceOrdensServico, Action: ActionCreate},
				{Resource: ResourceOrdensServico, Action: ActionUpdate},
				{Resource: ResourceOrdensServico, Action: ActionDelete},
				{Resource: ResourceEstoque, Action: ActionRead},
				{Resource: ResourceEstoque, Action: ActionUpdate},
				{Resource: ResourcePagamentos, Action: ActionApprove},
				{Resource: ResourcePagamentos, Action: ActionEstorno, Conditions: &Conditions{MaxValue: ceiling(500)}},
				{Resource: ResourceRelatorios, Action: ActionRead, Conditions: &Conditions{Departments: []string{"tecnica"}}},
			},
			ApprovalCeiling: ceiling(5000),
			RateBudget:      RateBudget{Requests: 180, Window: minute},
		},
		{
			Role:           RoleGerenteFinanceiro,
			HierarchyLevel: 4,
			Permissions: []Permission{
				{Resource: ResourceClientes, Action: ActionRead},
				{Resource: ResourceClientes, Action: ActionList},
				{Resource: ResourcePagamentos, Action: ActionRead},
				{Resource: ResourcePagamentos, Action: ActionCreate},
				{Resource: ResourcePagamentos, Action: ActionUpdate},
				{Resource: ResourcePagamentos, Action: ActionApprove},
				{Resource: ResourcePagamentos, Action: ActionEstorno},
				{Resource: ResourceRelatorios, Action: ActionRead},
			},
			RateBudget: RateBudget{Requests: 240, Window: minute},
		},
		{
			Role:           RoleGerenteAdministrativo,
			HierarchyLevel: 5,
			Permissions: []Permission{
				{Resource: ResourceAll, Action: ActionRead},
				{Resource: ResourceAll, Action: ActionList},
				{Resource: ResourceAll, Action: ActionCreate},
				{Resource: ResourceAll, Action: ActionUpdate},
				{Resource: ResourceAll, Action: ActionDelete},
				{Resource: ResourceUsuarios, Action: ActionManage},
				{Resource: ResourcePagamentos, Action: ActionApprove},
			},
			ApprovalCeiling: ceiling(50000),
			RateBudget:      RateBudget{Requests: 300, Window: minute},
		},
	}

	table := make(map[Role]RoleDefinition, len(defs))
	for _, def := range defs {
		table[def.Role] = def
	}
	return &Registry{definitions: table}
}

// Definition returns the definition for role. The permission slice is a copy.
func (r *Registry) Definition(role Role) (RoleDefinition, bool) {
	def, ok := r.definitions[role]
	if !ok {
		return RoleDefinition{}, false
	}
	perms := make([]Permission, len(def.Permissions))
	copy(perms, def.Permissions)
	def.Permissions = perms
	return def, true
}

// HierarchyLevel returns the level for role.
func (r *Registry) HierarchyLevel(role Role) (int, bool) {
	def, ok := r.definitions[role]
	if !ok {
		return 0, false
	}
	return def.HierarchyLevel, true
}

// Permissions returns a copy of the base permission set for role.
func (r *Registry) Permissions(role Role) []Permission {
	def, ok := r.definitions[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, len(def.Permissions))
	copy(perms, def.Permissions)
	return perms
}

// ApprovalCeiling returns the payment approval ceiling for role.
// A nil ceiling with ok=true means the role approves without limit.
func (r *Registry) ApprovalCeiling(role Role) (limit *float64, ok bool) {
	def, found := r.definitions[role]
	if !found {
		return nil, false
	}
	if def.ApprovalCeiling == nil {
		return nil, true
	}
	v := *def.ApprovalCeiling
	return &v, true
}

// RateBudget returns the request budget for role.
func (r *Registry) RateBudget(role Role) (RateBudget, bool) {
	def, ok := r.definitions[role]
	if !ok {
		return RateBudget{}, false
	}
	return def.RateBudget, true
}

// Roles lists the registered roles.
func (r *Registry) Roles() []Role {
	roles := make([]Role, 0, len(r.definitions))
	for role := range r.definitions {
		roles = append(roles, role)
	}
	return roles
}
