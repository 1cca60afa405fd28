package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opentrusty/tenantry/internal/access"
	"github.com/opentrusty/tenantry/internal/audit"
	"github.com/opentrusty/tenantry/internal/auth"
	"github.com/opentrusty/tenantry/internal/collection"
	"github.com/opentrusty/tenantry/internal/store/memory"
	"github.com/opentrusty/tenantry/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

type testServer struct {
	router http.Handler
	token  string
}

func newTestServer(t *testing.T, pred access.Predicate) *testServer {
	t.Helper()

	coll := tenant.NewCollection(pred)
	require.NoError(t, coll.Validate())
	svc := tenant.NewService(memory.NewTenantRepository(), coll, nil, 0, audit.NewSlogLogger())

	verifier, err := auth.NewVerifier(testSecret, "tenantry", 0)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(testSecret, "tenantry")
	require.NoError(t, err)
	token, err := issuer.Issue(access.Actor{ID: "editor-1"}, time.Hour)
	require.NoError(t, err)

	return &testServer{
		router: NewRouter(NewHandler(svc, verifier, nil), nil, false),
		token:  token,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// TestPurpose: Validates that every tenants endpoint refuses anonymous callers.
// Scope: Integration Test
// Security: Authentication enforcement (fail-closed)
// Expected: 401 for every operation without a valid bearer token, including forged tokens.
// Test Case ID: HTTP-01
func TestTenantAPI_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t, access.Authenticated)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/collections/tenants"},
		{http.MethodGet, "/api/tenants"},
		{http.MethodPost, "/api/tenants"},
		{http.MethodGet, "/api/tenants/some-id"},
		{http.MethodPatch, "/api/tenants/some-id"},
		{http.MethodDelete, "/api/tenants/some-id"},
		{http.MethodGet, "/api/tenants/slug/acme"},
		{http.MethodGet, "/api/tenants/resolve?domain=acme.example.com"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := s.do(t, rt.method, rt.path, map[string]any{"name": "Acme", "slug": "acme"}, false)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("forged token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("health stays public", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/health", nil, false)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// TestPurpose: Validates that an authenticated actor refused by the predicate gets 403.
// Scope: Integration Test
// Security: Authorization enforcement
// Expected: 403 Forbidden, nothing created.
// Test Case ID: HTTP-02
func TestTenantAPI_ForbiddenActor(t *testing.T) {
	readOnly := func(_ context.Context, req access.Request) bool {
		return req.Actor != nil && req.Operation == access.OpRead
	}
	s := newTestServer(t, readOnly)

	w := s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "Acme", "slug": "acme"}, true)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/tenants", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[tenant.Page](t, w).TotalDocs)
}

// TestPurpose: Validates the create, duplicate, deactivate flow over HTTP.
// Scope: Integration Test
// Expected: 201 with defaults applied, 409 on a taken slug, 200 on PATCH with updatedAt advanced.
// Test Case ID: HTTP-03
func TestTenantAPI_Scenario(t *testing.T) {
	s := newTestServer(t, access.Authenticated)

	w := s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "Acme", "slug": "acme"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[tenant.Tenant](t, w)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Active)
	assert.Nil(t, created.Domain)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NotContains(t, w.Body.String(), `"domain"`)

	w = s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "Acme 2", "slug": "acme"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/tenants/"+created.ID, map[string]any{"active": false}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[tenant.Tenant](t, w)
	assert.False(t, updated.Active)
	assert.Equal(t, "acme", updated.Slug)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	w = s.do(t, http.MethodGet, "/api/tenants/slug/acme", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[tenant.Tenant](t, w).ID)
}

// TestPurpose: Validates field-level validation errors.
// Scope: Integration Test
// Expected: 400 with a fields list naming each failing field; malformed bodies are rejected.
// Test Case ID: HTTP-04
func TestTenantAPI_Validation(t *testing.T) {
	s := newTestServer(t, access.Authenticated)

	type validationBody struct {
		Error  string                  `json:"error"`
		Fields []collection.FieldError `json:"fields"`
	}
	fieldNames := func(b validationBody) []string {
		names := make([]string, len(b.Fields))
		for i, f := range b.Fields {
			names[i] = f.Field
		}
		return names
	}

	w := s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "Acme"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"slug"}, fieldNames(decode[validationBody](t, w)))

	w = s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "  ", "slug": "acme"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"name"}, fieldNames(decode[validationBody](t, w)))

	w = s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "Acme", "slug": "acme", "active": "yes"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"active"}, fieldNames(decode[validationBody](t, w)))

	w = s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": "Acme", "slug": "acme", "plan": "gold"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"plan"}, fieldNames(decode[validationBody](t, w)))

	w = s.do(t, http.MethodPost, "/api/tenants", "{not json", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")

	w = s.do(t, http.MethodGet, "/api/tenants?limit=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates custom domain binding, resolution and unbinding.
// Scope: Integration Test
// Expected: Resolve finds the tenant by host in any case; a null domain in PATCH unbinds it.
// Test Case ID: HTTP-05
func TestTenantAPI_DomainLifecycle(t *testing.T) {
	s := newTestServer(t, access.Authenticated)

	w := s.do(t, http.MethodPost, "/api/tenants", map[string]any{
		"name": "Acme", "slug": "acme", "domain": "Acme.example.com.",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[tenant.Tenant](t, w)
	require.NotNil(t, created.Domain)
	assert.Equal(t, "acme.example.com", *created.Domain)

	w = s.do(t, http.MethodPost, "/api/tenants", map[string]any{
		"name": "Other", "slug": "other", "domain": "https://other.example.com/",
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"domain"`)

	w = s.do(t, http.MethodGet, "/api/tenants/resolve?domain=ACME.example.com:8443", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[tenant.Tenant](t, w).ID)

	w = s.do(t, http.MethodPatch, "/api/tenants/"+created.ID, "{\"domain\": null}", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[tenant.Tenant](t, w).Domain)

	w = s.do(t, http.MethodGet, "/api/tenants/resolve?domain=acme.example.com", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: Validates listing, deletion and not-found handling.
// Scope: Integration Test
// Expected: Paged listing metadata is correct; DELETE returns the removed record and later reads 404.
// Test Case ID: HTTP-06
func TestTenantAPI_ListAndDelete(t *testing.T) {
	s := newTestServer(t, access.Authenticated)

	var ids []string
	for _, slug := range []string{"a", "b", "c"} {
		w := s.do(t, http.MethodPost, "/api/tenants", map[string]any{"name": strings.ToUpper(slug), "slug": slug}, true)
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[tenant.Tenant](t, w).ID)
	}

	w := s.do(t, http.MethodGet, "/api/tenants?limit=2&page=2", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[tenant.Page](t, w)
	assert.Equal(t, 3, page.TotalDocs)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasPrevPage)
	assert.False(t, page.HasNextPage)
	require.Len(t, page.Docs, 1)
	assert.Equal(t, "c", page.Docs[0].Slug)

	w = s.do(t, http.MethodGet, "/api/tenants?page=9223372036854775807", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decode[tenant.Page](t, w)
	assert.Empty(t, page.Docs)
	assert.Equal(t, 3, page.TotalDocs)
	assert.False(t, page.HasNextPage)

	w = s.do(t, http.MethodDelete, "/api/tenants/"+ids[0], nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", decode[tenant.Tenant](t, w).Slug)

	w = s.do(t, http.MethodGet, "/api/tenants/"+ids[0], nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, "/api/tenants/"+ids[0], nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: Validates the admin metadata endpoint.
// Scope: Integration Test
// Expected: The schema lists the four fields, the default columns and the title field.
// Test Case ID: HTTP-07
func TestTenantAPI_DescribeCollection(t *testing.T) {
	s := newTestServer(t, access.Authenticated)

	w := s.do(t, http.MethodGet, "/api/collections/tenants", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	schema := decode[collection.Schema](t, w)

	assert.Equal(t, "tenants", schema.Slug)
	assert.Equal(t, []string{"name", "slug", "domain"}, schema.Admin.DefaultColumns)
	assert.Equal(t, "name", schema.Admin.UseAsTitle)
	assert.True(t, schema.Timestamps)
	require.Len(t, schema.Fields, 4)
	assert.Equal(t, true, schema.Fields[3].DefaultValue)
}
