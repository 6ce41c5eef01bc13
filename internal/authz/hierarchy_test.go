package authz

import (
	"context"
	"testing"
)

func newTestChecker(dir *stubDirectory) (*HierarchyChecker, *captureSink) {
	sink := &captureSink{}
	return NewHierarchyChecker(NewRegistry(), dir, sink, nil), sink
}

func TestCanManageUserStrictHierarchy(t *testing.T) {
	dir := &stubDirectory{roles: map[string]Role{
		"at-1":  RoleAtendente,
		"at-2":  RoleAtendente,
		"tec-1": RoleTecnico,
		"adm-1": RoleGerenteAdministrativo,
	}}
	checker, _ := newTestChecker(dir)
	ctx := context.Background()

	if !checker.CanManageUser(ctx, "adm-1", RoleGerenteAdministrativo, "tec-1") {
		t.Fatalf("higher rank should manage lower rank")
	}
	if checker.CanManageUser(ctx, "tec-1", RoleTecnico, "adm-1") {
		t.Fatalf("lower rank must not manage higher rank")
	}
	if checker.CanManageUser(ctx, "at-1", RoleAtendente, "at-2") {
		t.Fatalf("peers must not manage peers")
	}
}

func TestCanManageUserSelfServiceException(t *testing.T) {
	// Self-management needs no directory lookup at all.
	checker, sink := newTestChecker(&stubDirectory{})

	if !checker.CanManageUser(context.Background(), "at-1", RoleAtendente, "at-1") {
		t.Fatalf("self-management must always be allowed")
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0].Result != ResultAllowed {
		t.Fatalf("self-management should be audited as allowed, got %+v", entries)
	}
}

func TestCanManageUserUnknownTarget(t *testing.T) {
	checker, sink := newTestChecker(&stubDirectory{roles: map[string]Role{}})

	if checker.CanManageUser(context.Background(), "adm-1", RoleGerenteAdministrativo, "ghost") {
		t.Fatalf("unknown target must resolve to false")
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0].Result != ResultDenied {
		t.Fatalf("unknown target should be audited as denied, got %+v", entries)
	}
	if entries[0].Metadata["target_id"] != "ghost" {
		t.Fatalf("audit metadata should carry the target, got %v", entries[0].Metadata)
	}
}

func TestCanManageUserDirectoryFailureResolvesFalse(t *testing.T) {
	dir := &stubDirectory{err: context.DeadlineExceeded}
	checker, _ := newTestChecker(dir)

	if checker.CanManageUser(context.Background(), "adm-1", RoleGerenteAdministrativo, "tec-1") {
		t.Fatalf("directory failure must fail closed")
	}
}
