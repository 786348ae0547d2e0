package dashboard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/manifest.schema.json
var manifestSchema []byte

const manifestSchemaName = "dashboard-manifest.json"

// JSONSchemaValidator compiles schemas once per name and validates payloads.
type JSONSchemaValidator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator builds a validator backed by jsonschema v5.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks payload against schema. An empty schema accepts anything.
func (v *JSONSchemaValidator) Validate(name string, schema map[string]any, payload any) error {
	if len(schema) == 0 {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("dashboard: marshal schema %s: %w", name, err)
	}
	compiled, err := v.schemaFor(name, raw)
	if err != nil {
		return err
	}
	return validateAgainst(compiled, name, payload)
}

// ValidateManifest checks a decoded manifest tree against the embedded
// manifest schema.
func (v *JSONSchemaValidator) ValidateManifest(payload any) error {
	compiled, err := v.schemaFor(manifestSchemaName, manifestSchema)
	if err != nil {
		return err
	}
	return validateAgainst(compiled, "manifest", payload)
}

func validateAgainst(schema *jsonschema.Schema, name string, payload any) error {
	normalized, err := normalizeJSON(payload)
	if err != nil {
		return fmt.Errorf("dashboard: normalize %s: %w", name, err)
	}
	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("dashboard: %s failed validation: %w", name, err)
	}
	return nil
}

// normalizeJSON round-trips through encoding/json so the validator only sees
// JSON-native types.
func normalizeJSON(payload any) (any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *JSONSchemaValidator) schemaFor(name string, raw []byte) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[name]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}
	compiler := jsonschema.NewCompiler()
	resource := name
	if !strings.HasSuffix(resource, ".json") {
		resource += ".json"
	}
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("dashboard: load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("dashboard: compile schema %s: %w", name, err)
	}
	v.mu.Lock()
	v.compiled[name] = compiled
	v.mu.Unlock()
	return compiled, nil
}
