package federation

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// attestationPayloadSchema constrains the fixed payload shape of an
// attestation. Unknown extra fields are permitted for forward compatibility;
// known fields must have the right types or the fact is rejected before
// interpretation.
const attestationPayloadSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"expiration_date": {"type": "string"},
		"conditions": {"type": "array", "items": {"type": "string"}},
		"conditional": {"type": "boolean"}
	}
}`

var payloadSchema = jsonschema.MustCompileString("attestation_payload.json", attestationPayloadSchema)

// ValidatePayload checks a raw fact payload against the attestation payload
// schema. Validation runs after signature verification: a forged fact is
// rejected before its shape is ever inspected.
func ValidatePayload(raw json.RawMessage) error {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("federation: payload is not valid JSON: %w", err)
	}
	if err := payloadSchema.Validate(value); err != nil {
		return fmt.Errorf("federation: payload schema violation: %w", err)
	}
	return nil
}
