package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/platformsec/rbacgate/internal/identity"
	gatemw "github.com/platformsec/rbacgate/internal/middleware"
	"github.com/platformsec/rbacgate/internal/services/iam"
)

// AccessHandlers serves the access summary endpoint.
type AccessHandlers struct {
	builder *iam.AccessBuilder
}

// NewAccessHandlers creates the access summary handler set.
func NewAccessHandlers(builder *iam.AccessBuilder) *AccessHandlers {
	return &AccessHandlers{builder: builder}
}

// GetAccess handles GET /access/ - the read/write access summary for the
// authenticated principal. The response always has the full three-kind
// shape, with empty lists for kinds the principal has no grants on.
func (h *AccessHandlers) GetAccess(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		gatemw.WriteError(w, http.StatusUnauthorized, "no authenticated principal")
		return
	}

	access, err := h.builder.BuildAccess(r.Context(), principal)
	if err != nil {
		log.Printf("error building access summary for %s: %v", principal.Username, err)
		gatemw.WriteError(w, http.StatusInternalServerError, "failed to build access summary")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(access)
}
