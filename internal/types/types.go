package types

import "time"

// Classification is the harness verdict on a single probe outcome.
type Classification string

const (
	// Accepted means the service treated the input as ordinary data.
	Accepted Classification = "accepted"
	// SafelyRejected means the service refused the input with a client error.
	SafelyRejected Classification = "safely-rejected"
	// LeakDetected means the response showed evidence the input was parsed
	// or executed (database error signature, reflected script). Always a
	// hard failure regardless of status code.
	LeakDetected Classification = "leak-detected"
	// NetworkError means no HTTP response was obtained at all.
	NetworkError Classification = "network-error"
	// Inconclusive means the outcome fit no other bucket and needs review.
	Inconclusive Classification = "inconclusive"
)

// Verdict is the aggregate outcome of one named check.
type Verdict string

const (
	VerdictPass         Verdict = "pass"
	VerdictFail         Verdict = "fail"
	VerdictInconclusive Verdict = "inconclusive"
)

// FieldType names the JSON type a contract requires for a field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldObject FieldType = "object"
	FieldArray  FieldType = "array"
)

// FieldSpec declares the required type of one response field. Object fields
// may declare required sub-fields, checked recursively.
type FieldSpec struct {
	Type   FieldType
	Fields map[string]FieldSpec
}

// EndpointContract declares the expected response shape of one endpoint.
// Contracts are immutable configuration, declared once per endpoint.
type EndpointContract struct {
	Name         string
	Method       string
	Path         string // full URL, path parameters as {name} templates
	Statuses     []int  // accepted status codes
	ContentType  string // expected media type prefix, e.g. "application/json"
	BodyContains string // required body substring, e.g. "<html" for pages
	Array        bool   // response is a JSON array; Fields apply to the first element
	Fields       map[string]FieldSpec
}

// AcceptsStatus reports whether code is in the contract's accepted set.
func (c EndpointContract) AcceptsStatus(code int) bool {
	for _, s := range c.Statuses {
		if s == code {
			return true
		}
	}
	return false
}

// Provenance records how a fixture value was obtained.
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceFallback Provenance = "fallback"
)

// Fixture is a runtime-resolved test input. Never mutated after resolution.
type Fixture struct {
	Kind       string
	Value      string
	Values     []string // populated for multi-value kinds
	Provenance Provenance
}

// PayloadCategory tags an adversarial payload with its attack category.
type PayloadCategory string

const (
	CategorySQLInjection PayloadCategory = "sql-injection"
	CategoryXSS          PayloadCategory = "xss"
	CategoryOversize     PayloadCategory = "oversize"
	CategoryControlChar  PayloadCategory = "control-char"
)

// Payload is a single adversarial input string. Payloads are immutable
// configuration data, not derived at runtime.
type Payload struct {
	Value    string
	Category PayloadCategory
}

// ProbeResult records the outcome of one probe against one endpoint.
// Every result carries a classification before it is surfaced.
type ProbeResult struct {
	Endpoint       string          `json:"endpoint"`
	Method         string          `json:"method"`
	Slot           string          `json:"slot,omitempty"` // e.g. "path", "query:search", "body"
	Payload        string          `json:"payload,omitempty"`
	Category       PayloadCategory `json:"category,omitempty"`
	Status         int             `json:"status"`
	BodyDigest     string          `json:"body_digest,omitempty"`
	Classification Classification  `json:"classification"`
	Duration       time.Duration   `json:"duration"`
	Error          string          `json:"error,omitempty"`
}

// SessionState is the lifecycle state of one realtime session.
type SessionState string

const (
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateDisconnected SessionState = "disconnected"
	StateFailed       SessionState = "failed"
)
