package identity

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeIdentity builds the base64 header value for an identity blob
func encodeIdentity(t *testing.T, blob map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(blob)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func userBlob(account, username string) map[string]any {
	return map[string]any{
		"identity": map[string]any{
			"account_number": account,
			"type":           "User",
			"user": map[string]any{
				"username":     username,
				"email":        username + "@example.com",
				"is_active":    true,
				"is_org_admin": true,
			},
		},
	}
}

func TestExtract_UserIdentity(t *testing.T) {
	headers := http.Header{}
	headers.Set(IdentityHeader, encodeIdentity(t, userBlob("10001", "alice")))

	ident, err := Extract(headers)
	require.NoError(t, err)
	require.NotNil(t, ident)
	require.NotNil(t, ident.User)
	assert.Nil(t, ident.Service)

	assert.Equal(t, "10001", ident.User.AccountID)
	assert.Equal(t, "alice", ident.User.Username)
	assert.Equal(t, "alice@example.com", ident.User.Email)
	assert.True(t, ident.User.Active)
	assert.True(t, ident.User.OrgAdmin)
}

func TestExtract_MalformedIdentityHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"not JSON", base64.StdEncoding.EncodeToString([]byte("not json"))},
		{"empty object", encodeIdentity(t, map[string]any{})},
		{"missing user", encodeIdentity(t, map[string]any{
			"identity": map[string]any{"account_number": "10001"},
		})},
		{"empty username", encodeIdentity(t, map[string]any{
			"identity": map[string]any{
				"account_number": "10001",
				"user":           map[string]any{"username": ""},
			},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set(IdentityHeader, tt.value)

			ident, err := Extract(headers)
			assert.Nil(t, ident)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedIdentity)
		})
	}
}

func TestExtract_ServiceCredentials(t *testing.T) {
	headers := http.Header{}
	headers.Set(ServicePSKHeader, "secret-value")
	headers.Set(ServiceAccountHeader, "10001")
	headers.Set(ServiceClientIDHeader, "inventory")

	ident, err := Extract(headers)
	require.NoError(t, err)
	require.NotNil(t, ident)
	require.NotNil(t, ident.Service)
	assert.Nil(t, ident.User)

	assert.Equal(t, "secret-value", ident.Service.PSK)
	assert.Equal(t, "10001", ident.Service.AccountID)
	assert.Equal(t, "inventory", ident.Service.ClientID)
}

func TestExtract_IncompleteServiceCredentials(t *testing.T) {
	// All three headers are required for the service channel; any subset is
	// treated as no credentials at all.
	partials := []http.Header{
		{http.CanonicalHeaderKey(ServicePSKHeader): []string{"secret"}},
		{
			http.CanonicalHeaderKey(ServicePSKHeader):     []string{"secret"},
			http.CanonicalHeaderKey(ServiceAccountHeader): []string{"10001"},
		},
		{
			http.CanonicalHeaderKey(ServicePSKHeader):      []string{"secret"},
			http.CanonicalHeaderKey(ServiceClientIDHeader): []string{"inventory"},
		},
	}

	for _, headers := range partials {
		ident, err := Extract(headers)
		assert.NoError(t, err)
		assert.Nil(t, ident)
	}
}

func TestExtract_NoCredentials(t *testing.T) {
	ident, err := Extract(http.Header{})
	assert.NoError(t, err)
	assert.Nil(t, ident)
}

func TestExtract_TrustedChannelWins(t *testing.T) {
	headers := http.Header{}
	headers.Set(IdentityHeader, encodeIdentity(t, userBlob("10001", "alice")))
	headers.Set(ServicePSKHeader, "secret-value")
	headers.Set(ServiceAccountHeader, "20002")
	headers.Set(ServiceClientIDHeader, "inventory")

	ident, err := Extract(headers)
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.NotNil(t, ident.User)
	assert.Nil(t, ident.Service)
	assert.Equal(t, "10001", ident.User.AccountID)
}

func TestExtract_MalformedHeaderIsNotAnonymous(t *testing.T) {
	// A bad trusted header must fail, even when valid service headers are
	// also present: the trusted channel won, so its failure is final.
	headers := http.Header{}
	headers.Set(IdentityHeader, "garbage")
	headers.Set(ServicePSKHeader, "secret-value")
	headers.Set(ServiceAccountHeader, "10001")
	headers.Set(ServiceClientIDHeader, "inventory")

	ident, err := Extract(headers)
	assert.Nil(t, ident)
	assert.ErrorIs(t, err, ErrMalformedIdentity)
}
