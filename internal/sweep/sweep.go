// Package sweep applies the adversarial payload corpus across a matrix of
// {endpoint, parameter slot} pairs. Probes are independent: they share no
// state and a failure in one never aborts the sweep. A sweep is complete if
// and only if every combination produced a classified result.
package sweep

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pricedb-harness/internal/payloads"
	"pricedb-harness/internal/types"
)

// SlotKind names where a payload is injected.
type SlotKind string

const (
	SlotPath  SlotKind = "path"  // percent-encoded into the path segment
	SlotQuery SlotKind = "query" // appended under candidate parameter names
	SlotBody  SlotKind = "body"  // embedded in a JSON request body
)

// Slot pairs one endpoint with one injection position. Query slots carry
// candidate parameter names, since the true name may be unknown to the
// tester; every candidate is swept to widen coverage.
type Slot struct {
	Contract types.EndpointContract
	Kind     SlotKind
	Params   []string // query parameter candidates
	BodyFunc func(payload string) ([]byte, string) // body slots: payload -> (body, content type)
}

// BulkBody builds the items-bulk request body around one hostile SKU.
func BulkBody(payload string) ([]byte, string) {
	body, _ := json.Marshal(map[string]interface{}{
		"skus": []string{payload, "valid-sku-12345"},
	})
	return body, "application/json"
}

const (
	floodEntries   = 100
	floodEntrySize = 1024
)

// BulkFloodBody builds an oversized items-bulk request: 100 entries of 1 KB
// each, padded around the payload. The service must reject or degrade on the
// oversized array, never crash.
func BulkFloodBody(payload string) ([]byte, string) {
	entry := payload
	if len(entry) > floodEntrySize {
		entry = entry[:floodEntrySize]
	} else {
		entry += strings.Repeat("a", floodEntrySize-len(entry))
	}
	skus := make([]string, floodEntries)
	for i := range skus {
		skus[i] = entry
	}
	body, _ := json.Marshal(map[string]interface{}{"skus": skus})
	return body, "application/json"
}

// DefaultQueryParams are the candidate parameter names swept on listing
// endpoints.
var DefaultQueryParams = []string{"search", "filter", "name", "sku"}

// Config holds sweep execution settings
type Config struct {
	MaxWorkers int
	Timeout    time.Duration // per probe
}

// Engine runs security sweeps
type Engine struct {
	config Config
	client *http.Client
}

// NewEngine creates a new sweep engine
func NewEngine(config Config, client *http.Client) *Engine {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &Engine{config: config, client: client}
}

// Sweep cartesian-products slots against the corpus and returns one
// classified result per probe.
func (e *Engine) Sweep(ctx context.Context, slots []Slot, corpus []types.Payload) []types.ProbeResult {
	var results []types.ProbeResult
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.config.MaxWorkers)

	record := func(r types.ProbeResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for _, slot := range slots {
		for _, payload := range corpus {
			for _, probe := range e.expand(slot, payload) {
				wg.Add(1)
				go func(p probeSpec) {
					defer wg.Done()

					sem <- struct{}{}
					defer func() { <-sem }()

					record(e.execute(ctx, p))
				}(probe)
			}
		}
	}

	wg.Wait()
	return results
}

// probeSpec is one fully-built request to send.
type probeSpec struct {
	contract    types.EndpointContract
	slot        string
	payload     types.Payload
	url         string
	body        []byte
	contentType string
}

// expand turns a slot/payload pair into concrete probes. Path parameters in
// the template that the payload does not target are filled with a neutral
// placeholder so the request still reaches the intended handler.
func (e *Engine) expand(slot Slot, payload types.Payload) []probeSpec {
	switch slot.Kind {
	case SlotPath:
		target := fillTemplate(slot.Contract.Path, url.PathEscape(payload.Value))
		return []probeSpec{{
			contract: slot.Contract,
			slot:     "path",
			payload:  payload,
			url:      target,
		}}
	case SlotQuery:
		params := slot.Params
		if len(params) == 0 {
			params = DefaultQueryParams
		}
		base := fillTemplate(slot.Contract.Path, "placeholder")
		specs := make([]probeSpec, 0, len(params))
		for _, name := range params {
			sep := "?"
			if strings.Contains(base, "?") {
				sep = "&"
			}
			specs = append(specs, probeSpec{
				contract: slot.Contract,
				slot:     "query:" + name,
				payload:  payload,
				url:      base + sep + name + "=" + url.QueryEscape(payload.Value),
			})
		}
		return specs
	case SlotBody:
		if slot.BodyFunc == nil {
			return nil
		}
		body, contentType := slot.BodyFunc(payload.Value)
		return []probeSpec{{
			contract:    slot.Contract,
			slot:        "body",
			payload:     payload,
			url:         fillTemplate(slot.Contract.Path, "placeholder"),
			body:        body,
			contentType: contentType,
		}}
	default:
		return nil
	}
}

// fillTemplate substitutes every {param} segment in the path template.
func fillTemplate(path, value string) string {
	for {
		open := strings.Index(path, "{")
		if open < 0 {
			return path
		}
		end := strings.Index(path[open:], "}")
		if end < 0 {
			return path
		}
		path = path[:open] + value + path[open+end+1:]
	}
}

func (e *Engine) execute(ctx context.Context, p probeSpec) types.ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	result := types.ProbeResult{
		Endpoint: p.contract.Name,
		Method:   p.contract.Method,
		Slot:     p.slot,
		Payload:  truncate(p.payload.Value, 64),
		Category: p.payload.Category,
	}

	var reqBody io.Reader
	if p.body != nil {
		reqBody = bytes.NewReader(p.body)
	}
	req, err := http.NewRequestWithContext(probeCtx, p.contract.Method, p.url, reqBody)
	if err != nil {
		result.Classification = types.NetworkError
		result.Error = err.Error()
		return result
	}
	if p.contentType != "" {
		req.Header.Set("Content-Type", p.contentType)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	result.Duration = time.Since(start)

	if err != nil {
		result.Classification = payloads.Classify(payloads.Outcome{Err: err}, p.contract.Statuses)
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.Classification = types.NetworkError
		result.Error = err.Error()
		return result
	}

	result.Status = resp.StatusCode
	result.BodyDigest = digest(body)
	result.Classification = payloads.Classify(payloads.Outcome{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, p.contract.Statuses)
	return result
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:6])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
