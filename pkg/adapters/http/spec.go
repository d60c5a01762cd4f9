package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// maxBodySize bounds request bodies before they are validated.
const maxBodySize = 64 << 10

//go:embed openapi.yaml
var rawSpec []byte

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specErr  error
)

// GetSwagger returns the embedded OpenAPI document, loaded and validated once.
func GetSwagger() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(rawSpec)
		if err != nil {
			specErr = fmt.Errorf("failed to load OpenAPI spec: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			specErr = fmt.Errorf("invalid OpenAPI spec: %w", err)
			return
		}
		specDoc = doc
	})
	return specDoc, specErr
}

// RawSpec returns the embedded OpenAPI document as YAML.
func RawSpec() []byte {
	return rawSpec
}

// errBadRequest marks a body that does not satisfy the request schema.
var errBadRequest = errors.New("invalid request body")

// decodeBody validates the JSON body of a POST against the operation's request
// schema and decodes it into dst. An empty body is accepted when the operation
// does not require one.
func decodeBody(doc *openapi3.T, w http.ResponseWriter, r *http.Request, dst any) error {
	item := doc.Paths.Find(r.URL.Path)
	if item == nil {
		return fmt.Errorf("no operation for %s", r.URL.Path)
	}
	op := item.GetOperation(http.MethodPost)
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return fmt.Errorf("no request schema for %s", r.URL.Path)
	}
	body := op.RequestBody.Value

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if len(data) == 0 {
		if body.Required {
			return fmt.Errorf("%w: body is required", errBadRequest)
		}
		return nil
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if media := body.Content.Get("application/json"); media != nil && media.Schema != nil && media.Schema.Value != nil {
		if err := media.Schema.Value.VisitJSON(generic); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
