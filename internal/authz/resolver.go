package authz

import "slices"

// Resolver answers whether a role's base permission set grants an action on
// a resource under the request context. It has no side effects.
type Resolver struct {
	registry *Registry
}

// NewResolver builds a Resolver over the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Allowed reports whether role grants action on resource. A permission
// matches when its resource equals the requested resource or the wildcard
// and its action equals the requested action; conditions, when present, must
// all hold against the context.
func (r *Resolver) Allowed(role Role, resource, action string, pctx PermissionContext) bool {
	for _, perm := range r.registry.Permissions(role) {
		if !permissionMatches(perm, resource, action) {
			continue
		}
		if conditionsHold(perm.Conditions, pctx) {
			return true
		}
	}
	return false
}

func permissionMatches(perm Permission, resource, action string) bool {
	if perm.Action != action {
		return false
	}
	return perm.Resource == resource || perm.Resource == ResourceAll
}

// conditionsHold evaluates every present condition (logical AND). A nil
// Conditions is unconditional. MaxValue is not applicable when the request
// carries no value.
func conditionsHold(c *Conditions, pctx PermissionContext) bool {
	if c == nil {
		return true
	}
	if c.OwnOnly && pctx.ActorID != pctx.OwnerID {
		return false
	}
	if c.MaxValue != nil && pctx.Value != nil && *pctx.Value > *c.MaxValue {
		return false
	}
	if len(c.Departments) > 0 && !slices.Contains(c.Departments, pctx.Department) {
		return false
	}
	return true
}
