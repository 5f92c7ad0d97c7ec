package identity

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// identitySchemaJSON is the strict shape of the trusted identity blob.
// Decoding fails fast on structural problems instead of accepting partial
// identities: a blob without a user object or username is malformed, not
// anonymous. account_number is validated when present; its absence is a
// policy decision left to the middleware (some paths tolerate no tenant).
const identitySchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["identity"],
  "properties": {
    "identity": {
      "type": "object",
      "required": ["user"],
      "properties": {
        "account_number": {"type": "string"},
        "type": {"type": "string"},
        "user": {
          "type": "object",
          "required": ["username"],
          "properties": {
            "username": {"type": "string", "minLength": 1},
            "email": {"type": "string"},
            "is_active": {"type": "boolean"},
            "is_org_admin": {"type": "boolean"},
            "is_internal": {"type": "boolean"}
          }
        }
      }
    }
  }
}`

// identitySchema is compiled once at startup; compilation failure is a
// programming error.
var identitySchema = mustCompileIdentitySchema()

func mustCompileIdentitySchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(identitySchemaJSON)))
	if err != nil {
		panic(fmt.Sprintf("identity schema is not valid JSON: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource("identity.json", doc); err != nil {
		panic(fmt.Sprintf("add identity schema resource: %v", err))
	}
	return compiler.MustCompile("identity.json")
}

// validateEnvelope checks a decoded identity blob against the schema.
func validateEnvelope(decoded []byte) error {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(decoded))
	if err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	if err := identitySchema.Validate(value); err != nil {
		return fmt.Errorf("identity does not match schema: %v", err)
	}
	return nil
}
