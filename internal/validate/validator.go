// Package validate checks a response against a declared endpoint contract.
// Validation is fail-fast: the result names the first violated rule and no
// further rules are checked, since the goal is defect localization rather
// than exhaustive reporting.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"pricedb-harness/internal/types"
)

// ValidationResult names the first violated rule, or none.
type ValidationResult struct {
	OK     bool
	Rule   string // "status", "content-type", "body", or "field:<path>"
	Detail string
}

func violation(rule, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks, in order: status code membership, content-type prefix,
// and required JSON fields with their declared types. Array responses are
// validated against the first element only; an empty array passes, since the
// contract is structural rather than a full schema.
func Validate(status int, contentType string, body []byte, contract types.EndpointContract) ValidationResult {
	if !contract.AcceptsStatus(status) {
		return violation("status", "status %d not in accepted set %v", status, contract.Statuses)
	}

	if contract.ContentType != "" && !strings.HasPrefix(contentType, contract.ContentType) {
		return violation("content-type", "content type %q does not match %q", contentType, contract.ContentType)
	}

	if contract.BodyContains != "" && !strings.Contains(string(body), contract.BodyContains) {
		return violation("body", "response body does not contain %q", contract.BodyContains)
	}

	if !strings.HasPrefix(contract.ContentType, "application/json") {
		return ValidationResult{OK: true}
	}
	if contract.Fields == nil && !contract.Array {
		return ValidationResult{OK: true}
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return violation("body", "response is not valid JSON: %v", err)
	}

	target := decoded
	if contract.Array {
		arr, ok := decoded.([]interface{})
		if !ok {
			return violation("body", "expected JSON array, got %T", decoded)
		}
		if len(arr) == 0 {
			return ValidationResult{OK: true}
		}
		target = arr[0]
	}

	if contract.Fields == nil {
		return ValidationResult{OK: true}
	}
	return checkFields(target, contract.Fields, "")
}

// CheckFields validates an already-decoded JSON value against a field spec
// map. Used by checks that dig into a sub-object of a response themselves.
func CheckFields(value interface{}, fields map[string]types.FieldSpec) ValidationResult {
	return checkFields(value, fields, "")
}

func checkFields(value interface{}, fields map[string]types.FieldSpec, path string) ValidationResult {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return violation(fieldRule(path), "expected JSON object, got %T", value)
	}
	for name, spec := range fields {
		child, present := obj[name]
		childPath := joinPath(path, name)
		if !present {
			return violation(fieldRule(childPath), "required field missing")
		}
		if res := checkType(child, spec, childPath); !res.OK {
			return res
		}
	}
	return ValidationResult{OK: true}
}

func checkType(value interface{}, spec types.FieldSpec, path string) ValidationResult {
	switch spec.Type {
	case types.FieldString:
		if _, ok := value.(string); !ok {
			return violation(fieldRule(path), "expected string, got %T", value)
		}
	case types.FieldNumber:
		if _, ok := value.(float64); !ok {
			return violation(fieldRule(path), "expected number, got %T", value)
		}
	case types.FieldBool:
		if _, ok := value.(bool); !ok {
			return violation(fieldRule(path), "expected bool, got %T", value)
		}
	case types.FieldArray:
		if _, ok := value.([]interface{}); !ok {
			return violation(fieldRule(path), "expected array, got %T", value)
		}
	case types.FieldObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return violation(fieldRule(path), "expected object, got %T", value)
		}
		if spec.Fields != nil {
			return checkFields(value, spec.Fields, path)
		}
	}
	return ValidationResult{OK: true}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func fieldRule(path string) string {
	if path == "" {
		return "body"
	}
	return "field:" + path
}
