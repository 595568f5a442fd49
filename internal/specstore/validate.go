package specstore

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Validate runs a best-effort OpenAPI 3 check over a serialized
// document. Synthesized documents are descriptive, not strict, so
// callers treat a failure as advisory rather than fatal.
func Validate(data []byte) error {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("document is not loadable as OpenAPI 3: %w", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return fmt.Errorf("document failed OpenAPI 3 validation: %w", err)
	}
	return nil
}
