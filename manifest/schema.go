package manifest

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaObject reflects the JSON schema of Manifest in the inline, closed form
// that strict structured-output endpoints accept.
func SchemaObject() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	return r.Reflect(&Manifest{})
}

// Schema returns SchemaObject encoded as indented JSON.
func Schema() ([]byte, error) {
	return json.MarshalIndent(SchemaObject(), "", "  ")
}
