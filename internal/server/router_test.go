package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/platformsec/rbacgate/internal/config"
	"github.com/platformsec/rbacgate/internal/db/bunx"
	"github.com/platformsec/rbacgate/internal/identity"
	gatemw "github.com/platformsec/rbacgate/internal/middleware"
	"github.com/platformsec/rbacgate/internal/migrations"
	"github.com/platformsec/rbacgate/internal/repository"
	"github.com/platformsec/rbacgate/internal/services/authn"
	"github.com/platformsec/rbacgate/internal/services/iam"
	"github.com/platformsec/rbacgate/internal/services/tenants"
)

// newTestRouter wires the full gateway against an in-memory database.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := bunx.NewDB("file::memory:?cache=shared")
	if err != nil {
		t.Skipf("SQLite not available: %v", err)
	}
	t.Cleanup(func() { bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		APIPathPrefix:   "/api/rbac/v1",
		TenantCacheSize: 16,
		ServicePSKs: config.ServicePSKs{
			"inventory": {Secret: "inventory-secret"},
		},
	}

	tenantRepo := repository.NewBunTenantRepository(db)
	principalRepo := repository.NewBunPrincipalRepository(db)
	groupRepo := repository.NewBunGroupRepository(db)
	roleRepo := repository.NewBunRoleRepository(db)
	policyRepo := repository.NewBunPolicyRepository(db)
	accessRepo := repository.NewBunAccessRepository(db)

	directory, err := tenants.NewDirectory(tenantRepo, cfg.TenantCacheSize)
	require.NoError(t, err)

	mw, err := gatemw.NewIdentityMiddleware(cfg, gatemw.IdentityDependencies{
		Tenants:   directory,
		Validator: authn.NewValidator(cfg.ServicePSKs),
		Resolver:  iam.NewResolver(principalRepo),
	})
	require.NoError(t, err)

	return NewRouter(RouterOptions{
		Cfg:        cfg,
		Identity:   mw,
		Status:     NewStatusHandler(),
		Access:     NewAccessHandlers(iam.NewAccessBuilder(accessRepo)),
		Management: NewManagementHandlers(principalRepo, groupRepo, roleRepo, policyRepo),
	})
}

func identityHeaderFor(t *testing.T, account, username string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"identity": map[string]any{
			"account_number": account,
			"user": map[string]any{
				"username":  username,
				"email":     username + "@example.com",
				"is_active": true,
			},
		},
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func doJSON(t *testing.T, handler http.Handler, method, path, identityValue string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if identityValue != "" {
		req.Header.Set(identity.IdentityHeader, identityValue)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_UnauthenticatedSurface(t *testing.T) {
	router := newTestRouter(t)

	t.Run("health", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("status without credentials", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/rbac/v1/status/", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var status struct {
			APIVersion int `json:"api_version"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, 1, status.APIVersion)
	})

	t.Run("groups without credentials", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/rbac/v1/groups/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_AccessSummaryEndToEnd(t *testing.T) {
	router := newTestRouter(t)
	alice := identityHeaderFor(t, "10001", "alice")

	// A fresh principal has the empty-but-complete summary.
	rec := doJSON(t, router, http.MethodGet, "/api/rbac/v1/access/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"group":  {"read": [], "write": []},
		"role":   {"read": [], "write": []},
		"policy": {"read": [], "write": []}
	}`, rec.Body.String())

	// Create a group and add alice to it.
	rec = doJSON(t, router, http.MethodPost, "/api/rbac/v1/groups/", alice, map[string]any{
		"name": "admins",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var group struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	require.NotEmpty(t, group.ID)

	rec = doJSON(t, router, http.MethodGet, "/api/rbac/v1/principals/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var principals struct {
		Data []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &principals))
	require.Len(t, principals.Data, 1)
	assert.Equal(t, "alice", principals.Data[0].Username)

	rec = doJSON(t, router, http.MethodPost, "/api/rbac/v1/groups/"+group.ID+"/principals/", alice, map[string]any{
		"principals": []string{principals.Data[0].ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Create a role granting group reads on specific resources.
	rec = doJSON(t, router, http.MethodPost, "/api/rbac/v1/roles/", alice, map[string]any{
		"name": "group-viewer",
		"access": []map[string]any{{
			"permission": "rbac:group:read",
			"resourceDefinitions": []map[string]any{{
				"attributeFilter": map[string]any{
					"key":       "group.uuid",
					"operation": "in",
					"value":     []string{group.ID},
				},
			}},
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var role struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &role))

	// Bind the role to the group through a policy.
	rec = doJSON(t, router, http.MethodPost, "/api/rbac/v1/policies/", alice, map[string]any{
		"name":  "admin-policy",
		"group": group.ID,
		"roles": []string{role.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The summary now reflects the granted resources.
	rec = doJSON(t, router, http.MethodGet, "/api/rbac/v1/access/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var access struct {
		Group struct {
			Read  []string `json:"read"`
			Write []string `json:"write"`
		} `json:"group"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &access))
	assert.Equal(t, []string{group.ID}, access.Group.Read)
	assert.Empty(t, access.Group.Write)
}

func TestRouter_TenantIsolation(t *testing.T) {
	router := newTestRouter(t)
	alice := identityHeaderFor(t, "10001", "alice")
	eve := identityHeaderFor(t, "20002", "eve")

	rec := doJSON(t, router, http.MethodPost, "/api/rbac/v1/groups/", alice, map[string]any{
		"name": "admins",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var group struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))

	// Another tenant sees neither the listing nor the record itself.
	rec = doJSON(t, router, http.MethodGet, "/api/rbac/v1/groups/", eve, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Zero(t, listing.Meta.Count)

	rec = doJSON(t, router, http.MethodGet, "/api/rbac/v1/groups/"+group.ID+"/", eve, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/rbac/v1/groups/"+group.ID+"/", alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ServiceChannel(t *testing.T) {
	router := newTestRouter(t)
	alice := identityHeaderFor(t, "10001", "alice")

	// Seed the tenant through a user request.
	rec := doJSON(t, router, http.MethodGet, "/api/rbac/v1/access/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	serviceReq := func(account, psk string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/rbac/v1/access/", nil)
		req.Header.Set(identity.ServicePSKHeader, psk)
		req.Header.Set(identity.ServiceAccountHeader, account)
		req.Header.Set(identity.ServiceClientIDHeader, "inventory")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid credential, known tenant", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serviceReq("10001", "inventory-secret").Code)
	})

	t.Run("valid credential, unknown tenant", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serviceReq("99999", "inventory-secret").Code)
	})

	t.Run("invalid credential", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serviceReq("10001", "wrong").Code)
	})
}
