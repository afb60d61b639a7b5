package profile

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fallrisk/super-serial/internal/linkerr"
)

//go:embed profiles.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Schema returns the JSON schema profile files are checked against.
func Schema() []byte {
	return schemaJSON
}

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// validateDocument checks a decoded profile document and returns one
// SchemaError record per violation.
func validateDocument(doc interface{}) []*linkerr.Error {
	s, err := compiledSchema()
	if err != nil {
		return []*linkerr.Error{linkerr.Wrap(linkerr.SchemaError, "profile schema failed to compile", err)}
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []*linkerr.Error{linkerr.Wrap(linkerr.SchemaError, "profile document could not be read", err)}
	}
	if result.Valid() {
		return nil
	}

	records := make([]*linkerr.Error, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field, location := schemaField(desc)
		records = append(records, &linkerr.Error{
			Kind:    linkerr.SchemaError,
			Message: fmt.Sprintf("%s: %s", location, desc.Description()),
			Field:   field,
		})
	}
	return records
}

// schemaField returns the record key a violation concerns and a readable
// location such as "record 2".
func schemaField(desc gojsonschema.ResultError) (string, string) {
	path := desc.Field()
	parts := strings.Split(path, ".")

	location := "profiles"
	if path != "" && path != "(root)" {
		location = "record " + parts[0]
	}

	field := ""
	if len(parts) > 1 {
		field = parts[len(parts)-1]
	}
	if desc.Type() == "required" {
		if property, ok := desc.Details()["property"].(string); ok {
			field = property
		}
	}
	return field, location
}
