package authz

import "context"

// Verdict is the tri-state outcome of the custom permission overlay.
type Verdict int

const (
	// VerdictNoOpinion defers to the role's default.
	VerdictNoOpinion Verdict = iota
	// VerdictGrant allows the pair beyond the role default.
	VerdictGrant
	// VerdictDeny blocks the pair regardless of the role default.
	VerdictDeny
)

// Overlay evaluates per-user custom permissions. An entry for the exact
// resource+action pair always overrides the role default; a failed condition
// on an allow entry denies rather than deferring.
type Overlay struct {
	store CustomPermissionStore
}

// NewOverlay builds an Overlay over the given store.
func NewOverlay(store CustomPermissionStore) *Overlay {
	return &Overlay{store: store}
}

// Evaluate returns the overlay verdict for actorID on resource+action.
func (o *Overlay) Evaluate(ctx context.Context, actorID, resource, action string, pctx PermissionContext) (Verdict, error) {
	customs, err := o.store.GetCustomPermissions(ctx, actorID)
	if err != nil {
		return VerdictNoOpinion, err
	}
	for _, custom := range customs {
		if custom.Resource != resource || custom.Action != action {
			continue
		}
		if custom.Effect == EffectDeny {
			return VerdictDeny, nil
		}
		if !conditionsHold(custom.Conditions, pctx) {
			return VerdictDeny, nil
		}
		return VerdictGrant, nil
	}
	return VerdictNoOpinion, nil
}
