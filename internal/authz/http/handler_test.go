package authzhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/r2suporte/interalpha/internal/audit"
	"github.com/r2suporte/interalpha/internal/authz"
	"github.com/r2suporte/interalpha/internal/observability"
	"github.com/r2suporte/interalpha/internal/ratelimit"
	"github.com/r2suporte/interalpha/internal/shared"
	_ "github.com/r2suporte/interalpha/testing"
)

type stubDirectory struct {
	roles map[string]authz.Role
}

func (d *stubDirectory) GetRole(_ context.Context, userID string) (authz.Role, error) {
	role, ok := d.roles[userID]
	if !ok {
		return "", authz.ErrUserNotFound
	}
	return role, nil
}

func (d *stubDirectory) IsActive(_ context.Context, userID string) (bool, error) {
	_, ok := d.roles[userID]
	return ok, nil
}

type stubCustomStore struct {
	perms map[string][]authz.CustomPermission
}

func (s *stubCustomStore) GetCustomPermissions(_ context.Context, userID string) ([]authz.CustomPermission, error) {
	return s.perms[userID], nil
}

type stubAdminStore struct {
	granted []authz.CustomPermission
	revoked []string
}

func (s *stubAdminStore) Grant(_ context.Context, perm authz.CustomPermission) error {
	s.granted = append(s.granted, perm)
	return nil
}

func (s *stubAdminStore) Revoke(_ context.Context, userID, resource, action string) error {
	s.revoked = append(s.revoked, userID+"/"+resource+"/"+action)
	return nil
}

type stubTimelineRepo struct {
	rows []audit.TimelineRow
}

func (s *stubTimelineRepo) TimelineWindow(_ context.Context, _ audit.TimelineFilters, _, limit int) ([]audit.TimelineRow, error) {
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type testEnv struct {
	router chi.Router
	admin  *stubAdminStore
	sink   *audit.CaptureSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := authz.NewRegistry()
	directory := &stubDirectory{roles: map[string]authz.Role{
		"at-1": authz.RoleAtendente,
		"tc-1": authz.RoleTecnico,
		"ga-1": authz.RoleGerenteAdministrativo,
	}}
	sink := &audit.CaptureSink{}
	engine := authz.NewEngine(authz.EngineConfig{
		Registry:  registry,
		Directory: directory,
		Store:     &stubCustomStore{},
		Sink:      sink,
		Hours:     authz.DefaultBusinessHours,
	})
	admin := &stubAdminStore{}
	handler := NewHandler(HandlerConfig{
		Engine:    engine,
		Hierarchy: authz.NewHierarchyChecker(registry, directory, sink, nil),
		Limiter:   ratelimit.New(client, registry, false, nil),
		Admin:     admin,
		Timeline: audit.NewService(&stubTimelineRepo{rows: []audit.TimelineRow{
			{ActorID: "at-1", Action: "read:clientes", Resource: authz.ResourceClientes, Result: authz.ResultAllowed},
		}}),
		Metrics: observability.NewMetrics(),
	})

	router := chi.NewRouter()
	router.Route("/authz", handler.MountRoutes)
	return &testEnv{router: router, admin: admin, sink: sink}
}

func (e *testEnv) do(t *testing.T, method, path, body string, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeCheck(t *testing.T, rec *httptest.ResponseRecorder) CheckResponse {
	t.Helper()
	var resp CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCheckPermissionAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/authz/check",
		`{"actorId":"at-1","role":"atendente","resource":"clientes","action":"read"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeCheck(t, rec)
	if !resp.Allowed {
		t.Fatalf("expected allowed, got reason %q", resp.Reason)
	}
	if entries := env.sink.Entries(); len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
}

func TestCheckPermissionDenied(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/authz/check",
		`{"actorId":"at-1","role":"atendente","resource":"clientes","action":"delete"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeCheck(t, rec)
	if resp.Allowed {
		t.Fatalf("atendente must not delete clientes")
	}
	if resp.Reason != authz.ReasonInsufficientRole {
		t.Fatalf("expected reason %q, got %q", authz.ReasonInsufficientRole, resp.Reason)
	}
}

func TestCheckPermissionValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/authz/check", `{"actorId":"at-1"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/authz/check", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestCheckPermissionRateLimited(t *testing.T) {
	env := newTestEnv(t)

	budget, _ := authz.NewRegistry().RateBudget(authz.RoleAtendente)
	body := `{"actorId":"at-1","role":"atendente","resource":"clientes","action":"read"}`
	for i := 0; i < budget.Requests; i++ {
		rec := env.do(t, http.MethodPost, "/authz/check", body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/authz/check", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over budget, got %d", rec.Code)
	}
}

func TestManageCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/authz/manage-check",
		`{"managerId":"ga-1","managerRole":"gerente_administrativo","targetId":"tc-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ManageCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Allowed {
		t.Fatalf("gerente_administrativo must manage a tecnico")
	}

	rec = env.do(t, http.MethodPost, "/authz/manage-check",
		`{"managerId":"tc-1","managerRole":"tecnico","targetId":"ga-1"}`, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Allowed {
		t.Fatalf("tecnico must not manage a gerente_administrativo")
	}
}

func TestRateCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/authz/rate-check",
		`{"actorId":"tc-1","role":"tecnico"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp RateCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Allowed {
		t.Fatalf("first call must be within budget")
	}
}

func TestEffectivePermissions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/authz/permissions/at-1?role=atendente", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var views []PermissionView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, v := range views {
		if v.Resource == authz.ResourceClientes && v.Action == authz.ActionRead {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected read clientes in the effective set, got %+v", views)
	}

	rec = env.do(t, http.MethodGet, "/authz/permissions/at-1", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without role, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireActor(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/authz/custom-permissions",
		`{"userId":"tc-1","resource":"estoque","action":"update","effect":"allow"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", rec.Code)
	}
}

func TestAdminRoutesForbidNonManagers(t *testing.T) {
	env := newTestEnv(t)

	actor := &shared.Actor{ID: "at-1", Role: string(authz.RoleAtendente)}
	rec := env.do(t, http.MethodPost, "/authz/custom-permissions",
		`{"userId":"tc-1","resource":"estoque","action":"update","effect":"allow"}`, actor)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for atendente, got %d", rec.Code)
	}
	if len(env.admin.granted) != 0 {
		t.Fatalf("grant must not reach the store")
	}
}

func TestAdminGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	actor := &shared.Actor{ID: "ga-1", Role: string(authz.RoleGerenteAdministrativo)}

	rec := env.do(t, http.MethodPost, "/authz/custom-permissions",
		`{"userId":"tc-1","resource":"estoque","action":"update","effect":"allow","ownOnly":true}`, actor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.admin.granted) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(env.admin.granted))
	}
	perm := env.admin.granted[0]
	if perm.Effect != authz.EffectAllow || perm.Conditions == nil || !perm.Conditions.OwnOnly {
		t.Fatalf("grant lost its effect or conditions: %+v", perm)
	}

	rec = env.do(t, http.MethodDelete, "/authz/custom-permissions/tc-1/estoque/update", "", actor)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(env.admin.revoked) != 1 || env.admin.revoked[0] != "tc-1/estoque/update" {
		t.Fatalf("unexpected revokes: %v", env.admin.revoked)
	}

	rec = env.do(t, http.MethodPost, "/authz/custom-permissions",
		`{"userId":"tc-1","resource":"estoque","action":"update","effect":"maybe"}`, actor)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad effect, got %d", rec.Code)
	}
}

func TestAdminAuditTimeline(t *testing.T) {
	env := newTestEnv(t)
	actor := &shared.Actor{ID: "ga-1", Role: string(authz.RoleGerenteAdministrativo)}

	rec := env.do(t, http.MethodGet, "/authz/audit/timeline?page=1&pageSize=10", "", actor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result audit.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
}
