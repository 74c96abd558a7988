// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the manifest schema.
const SchemaID = "https://troupe.dev/schemas/troupe.schema.json"

// GenerateSchema generates the JSON Schema of the Manifest struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Troupe Manifest"
	schema.Description = "Schema for troupe.yaml command manifests"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Wrapf(err, "marshaling schema")
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Wrapf(err, "parsing schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, oops.Wrapf(err, "adding schema resource")
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, oops.Wrapf(err, "compiling schema")
	}
	return sch, nil
})

// ValidateSchema validates YAML data against the manifest JSON Schema.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeInvalidYAML).Wrapf(err, "invalid YAML")
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code(CodeSchema).With("detail", FormatSchemaError(err)).Wrapf(err, "schema validation failed")
	}
	return nil
}

// toJSONTypes converts decoded YAML into the types the validator accepts.
// Non-string map keys are stringified.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[toKey(k)] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case string, int, int64, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}

func toKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}

// FormatSchemaError strips wrapping from a schema validation error for
// display.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	var verr *jschema.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return strings.TrimPrefix(err.Error(), "schema validation failed: ")
}
