package authz

import (
	"context"
	"fmt"
	"time"
)

// BusinessHours is the local-time window during which technicians may read
// service orders. End is exclusive.
type BusinessHours struct {
	Start int
	End   int
}

// DefaultBusinessHours is the 08:00-18:00 window used in production.
var DefaultBusinessHours = BusinessHours{Start: 8, End: 18}

// RuleEvaluator applies the contextual business rules after permission
// resolution succeeds. Rules run in a fixed order and the evaluator
// short-circuits on the first failure: actor liveness, then the technician
// business-hours window, then the payment approval ceiling.
type RuleEvaluator struct {
	registry  *Registry
	directory Directory
	hours     BusinessHours
	now       func() time.Time
}

// NewRuleEvaluator builds a RuleEvaluator. A zero hours window falls back to
// DefaultBusinessHours.
func NewRuleEvaluator(registry *Registry, directory Directory, hours BusinessHours) *RuleEvaluator {
	if hours.Start == 0 && hours.End == 0 {
		hours = DefaultBusinessHours
	}
	return &RuleEvaluator{registry: registry, directory: directory, hours: hours, now: time.Now}
}

// Evaluate runs the rule chain. A false result carries the failing rule's
// reason; a non-nil error means a collaborator failed and the caller must
// fail closed.
func (e *RuleEvaluator) Evaluate(ctx context.Context, actorID string, role Role, resource, action string, pctx PermissionContext) (bool, string, error) {
	active, err := e.directory.IsActive(ctx, actorID)
	if err != nil {
		return false, "", fmt.Errorf("authz: liveness check for %s: %w", actorID, err)
	}
	if !active {
		return false, ReasonInactiveUser, nil
	}

	if role == RoleTecnico && resource == ResourceOrdensServico && action == ActionRead {
		if !e.withinBusinessHours(pctx) {
			return false, ReasonOutsideHours, nil
		}
	}

	if resource == ResourcePagamentos && action == ActionApprove && pctx.Value != nil {
		limit, ok := e.registry.ApprovalCeiling(role)
		if !ok {
			return false, "", fmt.Errorf("authz: no role definition for %q", role)
		}
		if limit != nil && *pctx.Value > *limit {
			return false, fmt.Sprintf("value %.2f exceeds the approval limit of %.2f for role %s", *pctx.Value, *limit, role), nil
		}
	}

	return true, "", nil
}

func (e *RuleEvaluator) withinBusinessHours(pctx PermissionContext) bool {
	at := pctx.Metadata.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	hour := at.Local().Hour()
	return hour >= e.hours.Start && hour < e.hours.End
}
