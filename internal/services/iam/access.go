package iam

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/repository"
)

// Resource kinds and verbs understood by the access summary. Permissions on
// access entries use the "application:resource:verb" format; unknown kinds
// and verbs are skipped rather than failing the whole summary.
const (
	resourceGroup  = "group"
	resourceRole   = "role"
	resourcePolicy = "policy"

	verbRead  = "read"
	verbWrite = "write"
	verbAny   = "*"
)

// Wildcard marks access to every resource of a kind, as opposed to the
// enumerated identifiers a resource definition narrows an entry to.
const Wildcard = "*"

// ResourceAccess lists the resource identifiers a principal may read and
// write for one resource kind. Both slices are always non-nil: a principal
// with no grants gets empty lists, never null or omitted keys.
type ResourceAccess struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

// Access is the summary over the three RBAC resource kinds.
type Access struct {
	Group  ResourceAccess `json:"group"`
	Role   ResourceAccess `json:"role"`
	Policy ResourceAccess `json:"policy"`
}

// emptyAccess returns the fixed shape with no grants.
func emptyAccess() *Access {
	empty := func() ResourceAccess {
		return ResourceAccess{Read: []string{}, Write: []string{}}
	}
	return &Access{Group: empty(), Role: empty(), Policy: empty()}
}

// AccessBuilder computes access summaries. It is a pure read over the
// store: no side effects, safe to call repeatedly and concurrently for the
// same principal.
type AccessBuilder struct {
	access repository.AccessRepository
}

// NewAccessBuilder creates an access summary builder.
func NewAccessBuilder(access repository.AccessRepository) *AccessBuilder {
	return &AccessBuilder{access: access}
}

// BuildAccess computes the read/write access summary for a principal. A nil
// principal, an unknown principal, and a principal with no grants all yield
// the same empty-but-complete shape.
func (b *AccessBuilder) BuildAccess(ctx context.Context, principal *models.Principal) (*Access, error) {
	result := emptyAccess()
	if principal == nil || principal.ID == "" {
		return result, nil
	}

	entries, err := b.access.ListForPrincipal(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("build access summary: %w", err)
	}

	// kind → verb → set of resource identifiers
	sets := map[string]map[string]map[string]struct{}{
		resourceGroup:  {verbRead: {}, verbWrite: {}},
		resourceRole:   {verbRead: {}, verbWrite: {}},
		resourcePolicy: {verbRead: {}, verbWrite: {}},
	}

	for _, entry := range entries {
		kind, verb, ok := parsePermission(entry.Permission)
		if !ok {
			continue
		}
		kindSets, ok := sets[kind]
		if !ok {
			continue
		}

		resources := resourceIDs(entry)
		for _, verb := range expandVerb(verb) {
			for _, id := range resources {
				kindSets[verb][id] = struct{}{}
			}
		}
	}

	result.Group = toResourceAccess(sets[resourceGroup])
	result.Role = toResourceAccess(sets[resourceRole])
	result.Policy = toResourceAccess(sets[resourcePolicy])
	return result, nil
}

// parsePermission splits "application:resource:verb" into its resource kind
// and verb. Malformed permissions are skipped by the caller.
func parsePermission(permission string) (kind, verb string, ok bool) {
	parts := strings.Split(permission, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// expandVerb maps a permission verb to the summary lists it feeds.
func expandVerb(verb string) []string {
	switch verb {
	case verbRead:
		return []string{verbRead}
	case verbWrite:
		return []string{verbWrite}
	case verbAny:
		return []string{verbRead, verbWrite}
	default:
		return nil
	}
}

// resourceIDs returns the identifiers an access entry applies to: the values
// of its resource definitions, or the wildcard when it has none.
func resourceIDs(entry models.Access) []string {
	if len(entry.ResourceDefinitions) == 0 {
		return []string{Wildcard}
	}

	var ids []string
	for _, rd := range entry.ResourceDefinitions {
		ids = append(ids, rd.AttributeFilter.Values...)
	}
	if len(ids) == 0 {
		return []string{Wildcard}
	}
	return ids
}

// toResourceAccess converts the verb sets to sorted, deduplicated lists.
func toResourceAccess(verbs map[string]map[string]struct{}) ResourceAccess {
	collect := func(set map[string]struct{}) []string {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}
	return ResourceAccess{Read: collect(verbs[verbRead]), Write: collect(verbs[verbWrite])}
}
