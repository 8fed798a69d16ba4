// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// preferencesSchema validates the preferences object accepted by the
// initialize and preference-update endpoints.
var preferencesSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"favoriteTopics": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"favoritePublications": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"updateFrequency": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"realtime", "hourly", "daily", "weekly"},
		},
		"region": map[string]interface{}{
			"type":      "string",
			"maxLength": 8,
		},
	},
	"additionalProperties": false,
}

// ValidatePreferences checks a raw preferences document against the schema
// and returns a single error describing every violation.
func ValidatePreferences(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(preferencesSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("invalid preferences: %s", strings.Join(errs, "; "))
	}

	return nil
}
