// Package identity parses the authentication headers of inbound requests
// into a normalized identity descriptor.
//
// Two mutually exclusive channels exist:
//
//   - A trusted identity header carrying a base64 JSON blob injected by the
//     platform ingress (end-user requests).
//   - A service credential triple (pre-shared key, target account, client ID)
//     for service-to-service calls.
//
// Extraction is pure parsing: no validation of credentials, no storage
// access. The service channel in particular produces an UNVALIDATED
// candidate that the caller must check against the configured secrets.
package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Request headers consumed by the extractor.
const (
	// IdentityHeader carries the base64-encoded trusted identity blob.
	IdentityHeader = "x-rh-identity"
	// ServicePSKHeader carries the pre-shared key presented by a calling service.
	ServicePSKHeader = "x-rh-rbac-psk"
	// ServiceAccountHeader carries the target account for a service call.
	ServiceAccountHeader = "x-rh-rbac-account"
	// ServiceClientIDHeader carries the caller's registered client identifier.
	ServiceClientIDHeader = "x-rh-rbac-client-id"
)

// ErrMalformedIdentity is returned when the trusted identity header is
// present but cannot be decoded into a well-formed identity. A malformed
// header is an authentication failure, never treated as anonymous.
var ErrMalformedIdentity = errors.New("malformed identity header")

// UserIdentity describes an end user authenticated by the platform ingress.
type UserIdentity struct {
	AccountID string
	Username  string
	Email     string
	Active    bool
	OrgAdmin  bool
	Internal  bool
}

// ServiceIdentity describes a service-to-service caller. The PSK is the
// presented credential, not yet checked against configuration.
type ServiceIdentity struct {
	PSK       string
	AccountID string
	ClientID  string
}

// Identity is the normalized descriptor produced by Extract. Exactly one of
// User or Service is set.
type Identity struct {
	User    *UserIdentity
	Service *ServiceIdentity
}

// identityEnvelope mirrors the wire structure of the trusted identity blob.
type identityEnvelope struct {
	Identity struct {
		AccountNumber string `json:"account_number"`
		Type          string `json:"type"`
		User          struct {
			Username   string `json:"username"`
			Email      string `json:"email"`
			IsActive   bool   `json:"is_active"`
			IsOrgAdmin bool   `json:"is_org_admin"`
			IsInternal bool   `json:"is_internal"`
		} `json:"user"`
	} `json:"identity"`
}

// Extract parses the request headers into an identity descriptor.
//
// Returns:
//   - (*Identity with User set, nil): trusted identity header decoded
//   - (*Identity with Service set, nil): service credential triple present
//   - (nil, nil): no authentication channel present
//   - (nil, ErrMalformedIdentity): trusted header present but undecodable
//
// The trusted channel wins when both are present; the service headers are
// ignored in that case.
func Extract(headers http.Header) (*Identity, error) {
	if raw := headers.Get(IdentityHeader); raw != "" {
		user, err := decodeUserIdentity(raw)
		if err != nil {
			return nil, err
		}
		return &Identity{User: user}, nil
	}

	psk := headers.Get(ServicePSKHeader)
	account := headers.Get(ServiceAccountHeader)
	clientID := headers.Get(ServiceClientIDHeader)
	if psk != "" && account != "" && clientID != "" {
		return &Identity{Service: &ServiceIdentity{
			PSK:       psk,
			AccountID: account,
			ClientID:  clientID,
		}}, nil
	}

	return nil, nil
}

// decodeUserIdentity base64-decodes and schema-validates the trusted blob.
func decodeUserIdentity(raw string) (*UserIdentity, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedIdentity, err)
	}

	if err := validateEnvelope(decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}

	var envelope identityEnvelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedIdentity, err)
	}

	return &UserIdentity{
		AccountID: envelope.Identity.AccountNumber,
		Username:  envelope.Identity.User.Username,
		Email:     envelope.Identity.User.Email,
		Active:    envelope.Identity.User.IsActive,
		OrgAdmin:  envelope.Identity.User.IsOrgAdmin,
		Internal:  envelope.Identity.User.IsInternal,
	}, nil
}
