// Package middleware contains the HTTP middleware that authenticates
// inbound requests and pins them to a tenant partition.
package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/platformsec/rbacgate/internal/config"
	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/identity"
	"github.com/platformsec/rbacgate/internal/repository"
	"github.com/platformsec/rbacgate/internal/services/authn"
	"github.com/platformsec/rbacgate/internal/services/iam"
	"github.com/platformsec/rbacgate/internal/services/tenants"
	"github.com/platformsec/rbacgate/internal/telemetry"
	"github.com/platformsec/rbacgate/internal/tenantscope"
)

// SystemUsername is the placeholder principal attached to exempt endpoints
// so downstream code never observes an absent principal. It is never
// persisted.
const SystemUsername = "system"

// IdentityDependencies bundles collaborators required by the identity middleware.
type IdentityDependencies struct {
	Tenants   *tenants.Directory
	Validator *authn.Validator
	Resolver  *iam.Resolver
	Metrics   *telemetry.AuthMetrics // Optional; nil disables instrumentation
}

// NewIdentityMiddleware builds the middleware that turns authentication
// headers into a resolved principal and an active tenant scope.
//
// Ordering per request:
//
//  1. Exempt paths (health, metrics, status) get a placeholder system
//     principal and skip authentication entirely.
//  2. The headers are parsed. Absent or malformed credentials are rejected
//     with 401 before any storage access.
//  3. The tenant is resolved: created on first sight for end users, looked
//     up without creation for service callers (404 on a miss).
//  4. The tenant scope is activated and released unconditionally when the
//     request finishes, panics included.
//  5. The principal is resolved inside the scope and stored on the context.
func NewIdentityMiddleware(cfg *config.Config, deps IdentityDependencies) (func(http.Handler) http.Handler, error) {
	if deps.Tenants == nil {
		return nil, errors.New("identity middleware requires tenant directory")
	}
	if deps.Validator == nil {
		return nil, errors.New("identity middleware requires credential validator")
	}
	if deps.Resolver == nil {
		return nil, errors.New("identity middleware requires principal resolver")
	}

	exempt := exemptPaths(cfg.APIPathPrefix)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if exempt(r.URL.Path) {
				ctx = identity.SetPrincipalContext(ctx, &models.Principal{
					Username: SystemUsername,
					System:   true,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			start := time.Now()

			ident, err := identity.Extract(r.Header)
			if err != nil {
				deps.Metrics.RecordAuth(ctx, "user", false, millisSince(start))
				WriteError(w, http.StatusUnauthorized, "malformed identity header")
				return
			}
			if ident == nil {
				deps.Metrics.RecordAuth(ctx, "none", false, millisSince(start))
				WriteError(w, http.StatusUnauthorized, "missing authentication credentials")
				return
			}

			var (
				channel string
				tenant  *models.Tenant
			)
			switch {
			case ident.User != nil:
				channel = "user"
				if ident.User.AccountID == "" {
					deps.Metrics.RecordAuth(ctx, channel, false, millisSince(start))
					WriteError(w, http.StatusUnauthorized, "identity header has no account number")
					return
				}

				tenant, err = deps.Tenants.GetOrCreate(ctx, ident.User.AccountID)
				if err != nil {
					log.Printf("error resolving tenant for account %s: %v", ident.User.AccountID, err)
					deps.Metrics.RecordAuth(ctx, channel, false, millisSince(start))
					WriteError(w, http.StatusInternalServerError, "tenant resolution failed")
					return
				}
				deps.Metrics.RecordTenantResolution(ctx, channel, "hit")

			case ident.Service != nil:
				channel = "service"
				if !deps.Validator.Validate(ident.Service.ClientID, ident.Service.PSK) {
					deps.Metrics.RecordAuth(ctx, channel, false, millisSince(start))
					WriteError(w, http.StatusUnauthorized, "invalid service credentials")
					return
				}

				// A valid credential targeting an unknown tenant is a miss,
				// never an implicit provision.
				tenant, err = deps.Tenants.Get(ctx, ident.Service.AccountID)
				if errors.Is(err, repository.ErrNotFound) {
					deps.Metrics.RecordTenantResolution(ctx, channel, "miss")
					deps.Metrics.RecordAuth(ctx, channel, false, millisSince(start))
					WriteError(w, http.StatusNotFound, "tenant not found")
					return
				}
				if err != nil {
					log.Printf("error resolving tenant for account %s: %v", ident.Service.AccountID, err)
					deps.Metrics.RecordAuth(ctx, channel, false, millisSince(start))
					WriteError(w, http.StatusInternalServerError, "tenant resolution failed")
					return
				}
				deps.Metrics.RecordTenantResolution(ctx, channel, "hit")
			}

			ctx, guard := tenantscope.Activate(ctx, tenant)
			defer guard.Release()

			principal, err := deps.Resolver.Resolve(ctx, ident)
			if err != nil {
				log.Printf("error resolving principal for tenant %s: %v", tenant.SchemaName, err)
				deps.Metrics.RecordAuth(ctx, channel, false, millisSince(start))
				WriteError(w, http.StatusInternalServerError, "principal resolution failed")
				return
			}

			deps.Metrics.RecordAuth(ctx, channel, true, millisSince(start))

			ctx = identity.SetPrincipalContext(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// exemptPaths returns a predicate for paths served without authentication.
func exemptPaths(apiPrefix string) func(string) bool {
	statusPrefix := strings.TrimSuffix(apiPrefix, "/") + "/status"
	return func(path string) bool {
		if path == "/health" || path == "/metrics" {
			return true
		}
		return path == statusPrefix || strings.HasPrefix(path, statusPrefix+"/")
	}
}

func millisSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
