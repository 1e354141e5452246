// Package schema validates response bodies against JSON Schema documents.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalid is wrapped by every error reporting schema violations.
var ErrInvalid = errors.New("schema validation failed")

// Validate checks body against the JSON Schema in schemaData. It returns nil
// when the body conforms, an error wrapping ErrInvalid listing each violation
// when it does not, and a plain error when either document is not valid JSON.
func Validate(body, schemaData []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(violations, "; "))
}

// ValidateFile reads the schema at path and validates body against it.
func ValidateFile(body []byte, path string) error {
	schemaData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	return Validate(body, schemaData)
}
