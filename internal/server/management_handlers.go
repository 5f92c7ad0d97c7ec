package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/platformsec/rbacgate/internal/db/models"
	gatemw "github.com/platformsec/rbacgate/internal/middleware"
	"github.com/platformsec/rbacgate/internal/repository"
)

// ManagementHandlers wires the tenant-scoped CRUD surface for principals,
// groups, roles, and policies. Every handler runs behind the identity
// middleware, so the tenant scope is already active and the repositories
// constrain all queries to the caller's partition.
type ManagementHandlers struct {
	principals repository.PrincipalRepository
	groups     repository.GroupRepository
	roles      repository.RoleRepository
	policies   repository.PolicyRepository
}

// NewManagementHandlers creates the management handler set.
func NewManagementHandlers(
	principals repository.PrincipalRepository,
	groups repository.GroupRepository,
	roles repository.RoleRepository,
	policies repository.PolicyRepository,
) *ManagementHandlers {
	return &ManagementHandlers{
		principals: principals,
		groups:     groups,
		roles:      roles,
		policies:   policies,
	}
}

// Mount registers the management routes on the versioned API router.
func (h *ManagementHandlers) Mount(r chi.Router) {
	r.Get("/principals/", h.ListPrincipals)
	r.Get("/groups/", h.ListGroups)
	r.Post("/groups/", h.CreateGroup)
	r.Get("/groups/{id}/", h.GetGroup)
	r.Post("/groups/{id}/principals/", h.AddGroupPrincipals)
	r.Get("/roles/", h.ListRoles)
	r.Post("/roles/", h.CreateRole)
	r.Get("/roles/{id}/", h.GetRole)
	r.Get("/policies/", h.ListPolicies)
	r.Post("/policies/", h.CreatePolicy)
	r.Get("/policies/{id}/", h.GetPolicy)
}

// listResponse is the envelope for collection endpoints.
type listResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Data any `json:"data"`
}

func writeList(w http.ResponseWriter, count int, data any) {
	resp := listResponse{Data: data}
	resp.Meta.Count = count
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		gatemw.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func handleRepoError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		gatemw.WriteError(w, http.StatusNotFound, "resource not found")
		return
	}
	log.Printf("error during %s: %v", op, err)
	gatemw.WriteError(w, http.StatusInternalServerError, op+" failed")
}

// ListPrincipals handles GET /principals/ within the active tenant.
func (h *ManagementHandlers) ListPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.principals.List(r.Context())
	if err != nil {
		handleRepoError(w, "list principals", err)
		return
	}
	writeList(w, len(principals), principals)
}

// ListGroups handles GET /groups/ within the active tenant.
func (h *ManagementHandlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		handleRepoError(w, "list groups", err)
		return
	}
	writeList(w, len(groups), groups)
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateGroup handles POST /groups/.
func (h *ManagementHandlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		gatemw.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	group := &models.Group{Name: req.Name, Description: req.Description}
	if err := h.groups.Create(r.Context(), group); err != nil {
		handleRepoError(w, "create group", err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// GetGroup handles GET /groups/{id}/.
func (h *ManagementHandlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleRepoError(w, "get group", err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type addPrincipalsRequest struct {
	Principals []string `json:"principals"` // principal IDs
}

// AddGroupPrincipals handles POST /groups/{id}/principals/.
func (h *ManagementHandlers) AddGroupPrincipals(w http.ResponseWriter, r *http.Request) {
	var req addPrincipalsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Principals) == 0 {
		gatemw.WriteError(w, http.StatusBadRequest, "principals is required")
		return
	}

	groupID := chi.URLParam(r, "id")
	for _, principalID := range req.Principals {
		if err := h.groups.AddPrincipal(r.Context(), groupID, principalID); err != nil {
			handleRepoError(w, "add group principal", err)
			return
		}
	}

	group, err := h.groups.GetByID(r.Context(), groupID)
	if err != nil {
		handleRepoError(w, "get group", err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// ListRoles handles GET /roles/ within the active tenant.
func (h *ManagementHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		handleRepoError(w, "list roles", err)
		return
	}
	writeList(w, len(roles), roles)
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Access      []struct {
		Permission          string `json:"permission"`
		ResourceDefinitions []struct {
			AttributeFilter models.AttributeFilter `json:"attributeFilter"`
		} `json:"resourceDefinitions"`
	} `json:"access"`
}

// CreateRole handles POST /roles/. Access entries and their resource
// definitions are created together with the role.
func (h *ManagementHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		gatemw.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	role := &models.Role{Name: req.Name, Description: req.Description}
	if err := h.roles.Create(r.Context(), role); err != nil {
		handleRepoError(w, "create role", err)
		return
	}

	for _, entry := range req.Access {
		access := &models.Access{RoleID: role.ID, Permission: entry.Permission}
		for _, rd := range entry.ResourceDefinitions {
			access.ResourceDefinitions = append(access.ResourceDefinitions, models.ResourceDefinition{
				AttributeFilter: rd.AttributeFilter,
			})
		}
		if err := h.roles.AddAccess(r.Context(), access); err != nil {
			handleRepoError(w, "add role access", err)
			return
		}
	}

	created, err := h.roles.GetByID(r.Context(), role.ID)
	if err != nil {
		handleRepoError(w, "get role", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetRole handles GET /roles/{id}/.
func (h *ManagementHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleRepoError(w, "get role", err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// ListPolicies handles GET /policies/ within the active tenant.
func (h *ManagementHandlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.List(r.Context())
	if err != nil {
		handleRepoError(w, "list policies", err)
		return
	}
	writeList(w, len(policies), policies)
}

type createPolicyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Group       string   `json:"group"` // group ID
	Roles       []string `json:"roles"` // role IDs
}

// CreatePolicy handles POST /policies/.
func (h *ManagementHandlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Group == "" {
		gatemw.WriteError(w, http.StatusBadRequest, "name and group are required")
		return
	}

	policy := &models.Policy{Name: req.Name, Description: req.Description, GroupID: req.Group}
	if err := h.policies.Create(r.Context(), policy); err != nil {
		handleRepoError(w, "create policy", err)
		return
	}

	for _, roleID := range req.Roles {
		if err := h.policies.AddRole(r.Context(), policy.ID, roleID); err != nil {
			handleRepoError(w, "add policy role", err)
			return
		}
	}

	created, err := h.policies.GetByID(r.Context(), policy.ID)
	if err != nil {
		handleRepoError(w, "get policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetPolicy handles GET /policies/{id}/.
func (h *ManagementHandlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.policies.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleRepoError(w, "get policy", err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}
