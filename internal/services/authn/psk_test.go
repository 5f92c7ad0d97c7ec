package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformsec/rbacgate/internal/config"
)

func testPSKs() config.ServicePSKs {
	return config.ServicePSKs{
		"inventory": {Secret: "inventory-secret"},
		"catalog":   {Secret: "catalog-secret", AltSecret: "catalog-rotated"},
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(testPSKs())

	t.Run("primary secret matches", func(t *testing.T) {
		assert.True(t, v.Validate("inventory", "inventory-secret"))
	})

	t.Run("alt secret matches during rotation", func(t *testing.T) {
		assert.True(t, v.Validate("catalog", "catalog-secret"))
		assert.True(t, v.Validate("catalog", "catalog-rotated"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, v.Validate("inventory", "wrong"))
	})

	t.Run("secret from another client", func(t *testing.T) {
		assert.False(t, v.Validate("inventory", "catalog-secret"))
	})

	t.Run("unknown client", func(t *testing.T) {
		assert.False(t, v.Validate("unknown", "inventory-secret"))
	})

	t.Run("empty presented secret", func(t *testing.T) {
		assert.False(t, v.Validate("inventory", ""))
	})
}

func TestValidator_EmptyConfiguration(t *testing.T) {
	// No configured credentials means every service call fails closed.
	v := NewValidator(config.ServicePSKs{})
	assert.False(t, v.Validate("inventory", "inventory-secret"))
	assert.False(t, v.Validate("", ""))
}

func TestGenerateSecret(t *testing.T) {
	first, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
