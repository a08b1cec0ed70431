package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed suite.schema.json
var schemaData []byte

var (
	suiteSchema *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

func compileSchema() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaData))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal suite schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("suite.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add suite schema resource: %w", err)
			return
		}
		suiteSchema, err = compiler.Compile("suite.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile suite schema: %w", err)
		}
	})
	return compileErr
}

// validateSchema checks raw YAML against the embedded suite schema. The
// document goes through JSON so the validator sees JSON types.
func validateSchema(data []byte) error {
	if err := compileSchema(); err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("empty suite file")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting to JSON: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := suiteSchema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
