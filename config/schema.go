package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of the configuration file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Every field has a default, so none is required in a file.
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Config{})
	s.Title = "proofread configuration"
	return json.MarshalIndent(s, "", "  ")
}
