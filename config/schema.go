package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dsl-grades/grade-hub/internal/infrastructure/ingest"
)

// LoadSchema reads a YAML column schema. Keys missing from the file keep
// their default column names; an empty path returns the defaults.
//
//	written:
//	  score: "Valutazione/30,00"
//	teams:
//	  session: Timestamp
//	  session_format: form-date
func LoadSchema(path string) (ingest.Schema, error) {
	schema := ingest.DefaultSchema()
	if path == "" {
		return schema, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return schema, fmt.Errorf("read schema: %w", err)
	}
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if err := schema.Validate(); err != nil {
		return schema, err
	}
	return schema, nil
}
