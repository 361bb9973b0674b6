package project

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaObject reflects the JSON schema of Spec for structured model output.
// Feature and data model IDs are left out; they are assigned locally.
func SchemaObject() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	return r.Reflect(&Spec{})
}

// Schema returns SchemaObject encoded as indented JSON.
func Schema() ([]byte, error) {
	return json.MarshalIndent(SchemaObject(), "", "  ")
}
