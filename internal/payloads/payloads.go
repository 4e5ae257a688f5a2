// Package payloads holds the static adversarial payload corpus and the
// response classifier. The corpus is configuration data: it is never derived
// at runtime and callers must not mutate it.
package payloads

import (
	"strings"

	"pricedb-harness/internal/types"
)

// sqlInjection covers classic tautologies, stacked queries, UNION-based,
// time-based with delay markers, and URL-encoded variants.
var sqlInjection = []string{
	"' OR '1'='1",
	"'; DROP TABLE users; --",
	"' UNION SELECT * FROM information_schema.tables --",
	"' OR 1=1 --",
	"admin'--",
	"admin' /*",
	"' OR 'x'='x",
	"'; EXEC xp_cmdshell('dir'); --",
	"1' AND 1=1 --",
	"1' AND 1=2 --",
	"' OR 1=1#",
	"' OR 'a'='a",
	"') OR ('1'='1",
	"' OR '1'='1' /*",
	"1; DELETE FROM users; --",
	"'; INSERT INTO users VALUES ('hacker', 'password'); --",
	"%27%20OR%20%271%27%3D%271",
	"1%27%20OR%20%271%27%3D%271%20--%20",
	"1' WAITFOR DELAY '00:00:05' --",
	"1'; WAITFOR DELAY '00:00:05'; --",
}

var xss = []string{
	"<script>alert('xss')</script>",
	"javascript:alert('xss')",
	"<img src=x onerror=alert('xss')>",
	"'><script>alert('xss')</script>",
	"\"><script>alert('xss')</script>",
}

// controlChars covers NUL through 0x1F plus DEL.
var controlChars = []string{
	"\x00", "\x01", "\x02", "\x1f", "\x7f",
}

const oversizeLength = 10 * 1024

// Corpus returns the full payload catalog, grouped by category tag.
func Corpus() []types.Payload {
	out := make([]types.Payload, 0, len(sqlInjection)+len(xss)+len(controlChars)+1)
	for _, v := range sqlInjection {
		out = append(out, types.Payload{Value: v, Category: types.CategorySQLInjection})
	}
	for _, v := range xss {
		out = append(out, types.Payload{Value: v, Category: types.CategoryXSS})
	}
	out = append(out, types.Payload{
		Value:    strings.Repeat("A", oversizeLength),
		Category: types.CategoryOversize,
	})
	for _, v := range controlChars {
		out = append(out, types.Payload{Value: v, Category: types.CategoryControlChar})
	}
	return out
}

// ByCategory returns the payloads carrying the given tag.
func ByCategory(category types.PayloadCategory) []types.Payload {
	var out []types.Payload
	for _, p := range Corpus() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// sqlErrorSignatures are lowercase syntax-error phrases emitted by the major
// SQL engines. Their presence in a response body is evidence that hostile
// input reached the database layer. The list is a heuristic: absence of a
// signature means "no evidence of leak", not proof of safety.
var sqlErrorSignatures = []string{
	"sql syntax",
	"mysql_fetch",
	"ora-01756",
	"ora-00933",
	"ora-00921",
	"microsoft jet database",
	"microsoft odbc",
	"odbc drivers error",
	"sqlite_error",
	"postgresql error",
	"warning: mysql",
	"valid mysql result",
	"error in your sql syntax",
	"you have an error in your sql syntax",
	"please check the manual that corresponds to your mysql server version",
	"unclosed quotation mark",
	"quoted string not properly terminated",
}

// xssMarkers are substrings that must never appear un-encoded in a response
// that claims to be JSON.
var xssMarkers = []string{
	"<script>",
	"javascript:",
	"onerror=",
}

// safeRejectionStatuses are client-error codes that count as a safe refusal
// of hostile input.
var safeRejectionStatuses = map[int]bool{
	400: true,
	404: true,
	413: true,
	414: true,
	422: true,
	429: true,
}

// Outcome is the raw observation from one probe, before classification.
type Outcome struct {
	Status      int
	ContentType string
	Body        []byte
	Err         error // set when no HTTP response was obtained
}

// Classify labels one probe outcome.
//
// A database-engine error signature, or an un-encoded script payload echoed
// in a claimed-JSON response, is LeakDetected regardless of status: the
// harness must distinguish "handled hostile input as harmless data" from
// "parsed or executed it", and the outer status code cannot tell those apart.
// Network failures are labelled rather than propagated, since some payloads
// (time-based injection) deliberately provoke server-side delay.
func Classify(o Outcome, accepted []int) types.Classification {
	if o.Err != nil {
		return types.NetworkError
	}

	body := strings.ToLower(string(o.Body))
	for _, sig := range sqlErrorSignatures {
		if strings.Contains(body, sig) {
			return types.LeakDetected
		}
	}
	if strings.HasPrefix(o.ContentType, "application/json") {
		for _, marker := range xssMarkers {
			if strings.Contains(body, marker) {
				return types.LeakDetected
			}
		}
	}

	if safeRejectionStatuses[o.Status] {
		return types.SafelyRejected
	}

	for _, s := range accepted {
		if s == o.Status {
			return types.Accepted
		}
	}

	return types.Inconclusive
}

// ContainsSQLSignature reports whether body carries a known database-engine
// error phrase. Exposed for property checks that inspect bodies directly.
func ContainsSQLSignature(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, sig := range sqlErrorSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
