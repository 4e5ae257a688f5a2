package contracts

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"pricedb-harness/internal/types"
)

// Importer merges endpoint contracts from a live OpenAPI document. Imported
// contracts carry only what the document declares; undocumented endpoints
// stay covered by the static tables.
type Importer struct {
	baseURL string
	client  *http.Client
	doc     *openapi3.T
}

// NewImporter creates a new OpenAPI contract importer
func NewImporter(baseURL string, client *http.Client) *Importer {
	if client == nil {
		client = &http.Client{}
	}
	return &Importer{
		baseURL: baseURL,
		client:  client,
	}
}

// Import fetches the OpenAPI documentation and converts its operations into
// endpoint contracts.
func (i *Importer) Import(docURL string) ([]types.EndpointContract, error) {
	urls := []string{docURL}
	if docURL == "" {
		urls = []string{
			fmt.Sprintf("%s/swagger.json", i.baseURL),
			fmt.Sprintf("%s/api/swagger.json", i.baseURL),
			fmt.Sprintf("%s/openapi.json", i.baseURL),
		}
	}

	var lastErr error
	for _, url := range urls {
		i.doc, lastErr = i.fetchDoc(url)
		if lastErr == nil {
			break
		}
	}
	if i.doc == nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI documentation: %v", lastErr)
	}

	return i.extractContracts(), nil
}

func (i *Importer) fetchDoc(url string) (*openapi3.T, error) {
	resp, err := i.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %v", err)
	}

	return doc, nil
}

func (i *Importer) extractContracts() []types.EndpointContract {
	var out []types.EndpointContract

	paths := i.doc.Paths.Map()
	for path, pathItem := range paths {
		for method, operation := range pathItem.Operations() {
			contract := types.EndpointContract{
				Name:        strings.ToLower(method) + " " + path,
				Method:      strings.ToUpper(method),
				Path:        i.baseURL + path,
				ContentType: "application/json",
			}

			responses := operation.Responses.Map()
			for statusCode, response := range responses {
				code := 0
				fmt.Sscanf(statusCode, "%d", &code)
				if code == 0 {
					continue
				}
				contract.Statuses = append(contract.Statuses, code)

				// Only the success response shapes the field contract.
				if code < 200 || code >= 300 || response.Value == nil {
					continue
				}
				content, ok := response.Value.Content["application/json"]
				if !ok || content.Schema == nil {
					continue
				}
				schema := i.resolveRef(content.Schema)
				if schema == nil || schema.Value == nil {
					continue
				}
				if schema.Value.Type != nil && schema.Value.Type.Is("array") {
					contract.Array = true
					if schema.Value.Items != nil {
						schema = i.resolveRef(schema.Value.Items)
					}
				}
				if schema != nil && schema.Value != nil {
					contract.Fields = schemaFields(schema.Value)
				}
			}

			if len(contract.Statuses) == 0 {
				contract.Statuses = []int{200}
			}
			out = append(out, contract)
		}
	}

	return out
}

func (i *Importer) resolveRef(schema *openapi3.SchemaRef) *openapi3.SchemaRef {
	if schema == nil {
		return nil
	}
	if ref := schema.Ref; ref != "" {
		name := strings.TrimPrefix(ref, "#/components/schemas/")
		if resolved, ok := i.doc.Components.Schemas[name]; ok {
			return resolved
		}
	}
	return schema
}

// schemaFields maps top-level schema properties onto contract field specs.
// Nested object properties are deliberately not descended into: imported
// contracts stay shallow and the static tables carry the deep shapes.
func schemaFields(schema *openapi3.Schema) map[string]types.FieldSpec {
	if len(schema.Properties) == 0 {
		return nil
	}
	fields := make(map[string]types.FieldSpec, len(schema.Properties))
	for name, prop := range schema.Properties {
		if prop == nil || prop.Value == nil || prop.Value.Type == nil {
			continue
		}
		switch {
		case prop.Value.Type.Is("string"):
			fields[name] = types.FieldSpec{Type: types.FieldString}
		case prop.Value.Type.Is("number"), prop.Value.Type.Is("integer"):
			fields[name] = types.FieldSpec{Type: types.FieldNumber}
		case prop.Value.Type.Is("boolean"):
			fields[name] = types.FieldSpec{Type: types.FieldBool}
		case prop.Value.Type.Is("array"):
			fields[name] = types.FieldSpec{Type: types.FieldArray}
		case prop.Value.Type.Is("object"):
			fields[name] = types.FieldSpec{Type: types.FieldObject}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
