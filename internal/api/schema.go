package api

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed submission.schema.json
var submissionSchemaJSON []byte

var submissionSchema = mustSchema(submissionSchemaJSON)

func mustSchema(data []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(eris.Wrap(err, "api: compile submission schema"))
	}
	return s
}

// validateSubmission checks a raw request body against the submission
// schema and reports every violation in one error.
func validateSubmission(body []byte) error {
	result, err := submissionSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return eris.Wrap(err, "invalid JSON")
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return eris.Errorf("invalid submission: %s", strings.Join(errs, "; "))
}
