package compose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	berthschema "github.com/Paintersrp/berth/schema"
)

var (
	schemaOnce    sync.Once
	composeSchema *jsonschema.Schema
	schemaErr     error
)

func loadComposeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("compose.v1.json", bytes.NewReader(berthschema.ComposeV1Schema)); err != nil {
			schemaErr = fmt.Errorf("add compose schema resource: %w", err)
			return
		}
		composeSchema, schemaErr = compiler.Compile("compose.v1.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile compose schema: %w", schemaErr)
		}
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return composeSchema, nil
}

func validateAgainstSchema(root *yaml.Node) error {
	schema, err := loadComposeSchema()
	if err != nil {
		return fmt.Errorf("load compose schema: %w", err)
	}

	var doc any
	if err := root.Decode(&doc); err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}
	normalized, err := normalizeForSchema(doc)
	if err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}

	if err := schema.Validate(normalized); err != nil {
		if vErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("schema validation failed:\n%s", formatValidationError(vErr))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func normalizeForSchema(doc any) (any, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(buf.Bytes()))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// formatValidationError flattens the cause tree to its leaves, one
// line per violation, with the instance location rendered in the same
// dotted form the validator uses (services.db.ports[0]).
func formatValidationError(err *jsonschema.ValidationError) string {
	var lines []string
	for _, leaf := range leafCauses(err) {
		lines = append(lines, fmt.Sprintf("- %s: %s", schemaFieldPath(leaf.InstanceLocation), leaf.Message))
	}
	return strings.Join(lines, "\n")
}

func leafCauses(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

// schemaFieldPath converts a JSON pointer into a dotted field path.
// Numeric segments attach to the preceding field as an index.
func schemaFieldPath(ptr string) string {
	parts := make([]string, 0, 4)
	for _, segment := range strings.Split(ptr, "/") {
		if segment == "" {
			continue
		}
		decoded := strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(decoded); err == nil && len(parts) > 0 {
			parts[len(parts)-1] += "[" + decoded + "]"
			continue
		}
		parts = append(parts, decoded)
	}
	if len(parts) == 0 {
		return "manifest"
	}
	return fieldPath(parts...)
}
