// Package authn validates service-to-service credentials.
package authn

import (
	"crypto/subtle"

	"github.com/platformsec/rbacgate/internal/config"
)

// Validator checks presented pre-shared keys against the static credential
// configuration loaded at process start. The configuration is read-only
// after construction; Validate never mutates state and never logs secret
// values.
type Validator struct {
	psks config.ServicePSKs
}

// NewValidator creates a validator over the configured client credentials.
func NewValidator(psks config.ServicePSKs) *Validator {
	return &Validator{psks: psks}
}

// Validate reports whether the presented PSK matches the configured secret
// for the client. Unknown clients and empty configuration fail closed.
//
// The comparison is constant-time in the secret material. Both the primary
// and the rotation secret are always compared so the timing shape does not
// reveal which one matched.
func (v *Validator) Validate(clientID, presented string) bool {
	cred, ok := v.psks[clientID]
	if !ok || presented == "" {
		return false
	}

	primary := subtle.ConstantTimeCompare([]byte(presented), []byte(cred.Secret))

	alt := 0
	if cred.AltSecret != "" {
		alt = subtle.ConstantTimeCompare([]byte(presented), []byte(cred.AltSecret))
	}

	return primary == 1 || alt == 1
}
