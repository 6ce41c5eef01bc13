package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayNoOpinionWithoutEntries(t *testing.T) {
	overlay := NewOverlay(&stubCustomStore{})

	verdict, err := overlay.Evaluate(context.Background(), "at-1", ResourceClientes, ActionRead, PermissionContext{ActorID: "at-1"})
	require.NoError(t, err)
	require.Equal(t, VerdictNoOpinion, verdict)
}

func TestOverlayExactPairMatch(t *testing.T) {
	store := &stubCustomStore{perms: map[string][]CustomPermission{
		"at-1": {
			{UserID: "at-1", Resource: ResourceEstoque, Action: ActionRead, Effect: EffectAllow},
			{UserID: "at-1", Resource: ResourceEstoque, Action: ActionUpdate, Effect: EffectDeny},
		},
	}}
	overlay := NewOverlay(store)
	pctx := PermissionContext{ActorID: "at-1"}

	verdict, err := overlay.Evaluate(context.Background(), "at-1", ResourceEstoque, ActionRead, pctx)
	require.NoError(t, err)
	require.Equal(t, VerdictGrant, verdict)

	verdict, err = overlay.Evaluate(context.Background(), "at-1", ResourceEstoque, ActionUpdate, pctx)
	require.NoError(t, err)
	require.Equal(t, VerdictDeny, verdict)

	// A near miss on either half of the pair must not match.
	verdict, err = overlay.Evaluate(context.Background(), "at-1", ResourceEstoque, ActionDelete, pctx)
	require.NoError(t, err)
	require.Equal(t, VerdictNoOpinion, verdict)
}

func TestOverlayAllowWithFailedConditionDenies(t *testing.T) {
	store := &stubCustomStore{perms: map[string][]CustomPermission{
		"tec-1": {{
			UserID:     "tec-1",
			Resource:   ResourceOrdensServico,
			Action:     ActionUpdate,
			Effect:     EffectAllow,
			Conditions: &Conditions{OwnOnly: true},
		}},
	}}
	overlay := NewOverlay(store)

	own := PermissionContext{ActorID: "tec-1", OwnerID: "tec-1"}
	verdict, err := overlay.Evaluate(context.Background(), "tec-1", ResourceOrdensServico, ActionUpdate, own)
	require.NoError(t, err)
	require.Equal(t, VerdictGrant, verdict)

	foreign := PermissionContext{ActorID: "tec-1", OwnerID: "tec-2"}
	verdict, err = overlay.Evaluate(context.Background(), "tec-1", ResourceOrdensServico, ActionUpdate, foreign)
	require.NoError(t, err)
	require.Equal(t, VerdictDeny, verdict)
}

func TestOverlayPropagatesStoreError(t *testing.T) {
	overlay := NewOverlay(&stubCustomStore{err: errors.New("store unavailable")})

	verdict, err := overlay.Evaluate(context.Background(), "at-1", ResourceClientes, ActionRead, PermissionContext{ActorID: "at-1"})
	require.Error(t, err)
	require.Equal(t, VerdictNoOpinion, verdict)
}
