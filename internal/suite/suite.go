// Package suite assembles the full set of verification checks: per-endpoint
// contract checks, behavioral property checks, the adversarial payload
// sweep, the concurrency probe and the realtime session checks.
package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricedb-harness/internal/config"
	"pricedb-harness/internal/contracts"
	"pricedb-harness/internal/executor"
	"pricedb-harness/internal/fixture"
	"pricedb-harness/internal/payloads"
	"pricedb-harness/internal/probe"
	"pricedb-harness/internal/realtime"
	"pricedb-harness/internal/sweep"
	"pricedb-harness/internal/types"
	"pricedb-harness/internal/validate"
)

// Suite builds checks against one configured deployment.
type Suite struct {
	cfg      *config.Config
	client   *http.Client
	resolver *fixture.Resolver
	harness  *realtime.Harness
}

// New creates a suite for the configured targets.
func New(cfg *config.Config) *Suite {
	httpTimeout := time.Duration(cfg.Suite.HTTPTimeout) * time.Second
	client := &http.Client{Timeout: httpTimeout}

	harness := realtime.NewHarness(cfg.Targets.RealtimeURL)
	harness.ConnectTimeout = time.Duration(cfg.Suite.ConnectTimeout) * time.Second
	harness.HeartbeatTimeout = time.Duration(cfg.Suite.HeartbeatTimeout) * time.Second

	return &Suite{
		cfg:      cfg,
		client:   client,
		resolver: fixture.NewResolver(cfg.Targets.APIBaseURL, cfg.Targets.SpellsBaseURL, client),
		harness:  harness,
	}
}

// Checks returns every check in the suite. Extra contracts (e.g. imported
// from an OpenAPI document) are appended to the static tables.
func (s *Suite) Checks(extra []types.EndpointContract) []executor.Check {
	t := s.cfg.Targets

	all := contracts.API(t.APIBaseURL)
	all = append(all, contracts.Spells(t.SpellsBaseURL)...)
	all = append(all, contracts.Status(t.StatusBaseURL)...)
	all = append(all, contracts.Website(t.SiteBaseURL)...)
	all = append(all, extra...)

	checks := make([]executor.Check, 0, len(all)+9)
	for _, c := range all {
		checks = append(checks, s.contractCheck(c))
	}

	checks = append(checks,
		s.skuEchoCheck(),
		s.snapshotBoundCheck(),
		s.statusServicesCheck(),
		s.securitySweepCheck(),
		s.concurrencyCheck(),
		s.realtimeConnectCheck(),
		s.realtimeRoundTripCheck(),
		s.realtimeHoldCheck(),
		s.realtimeFanOutCheck(),
	)
	return checks
}

// contractCheck fetches one endpoint and validates the response against its
// declared contract. When the check depended on a fallback fixture, a
// failure is demoted to inconclusive: the defect cannot be attributed to the
// service while the precondition was already degraded.
func (s *Suite) contractCheck(c types.EndpointContract) executor.Check {
	return executor.Check{
		Name: "contract/" + c.Name,
		Run: func(ctx context.Context) executor.Result {
			target, usedFallback := s.materialize(ctx, c.Path)
			body := s.requestBody(ctx, c)

			outcome, result := s.fetch(ctx, c, target, body)
			if outcome.Err != nil {
				result.Classification = types.NetworkError
				return executor.Result{
					Verdict:  types.VerdictInconclusive,
					Probes:   []types.ProbeResult{result},
					Failures: []string{fmt.Sprintf("request failed: %v", outcome.Err)},
				}
			}

			v := validate.Validate(outcome.Status, outcome.ContentType, outcome.Body, c)
			if v.OK {
				result.Classification = types.Accepted
				return executor.Result{
					Verdict: types.VerdictPass,
					Probes:  []types.ProbeResult{result},
				}
			}

			result.Classification = types.Inconclusive
			failure := fmt.Sprintf("contract violation (%s): %s", v.Rule, v.Detail)
			verdict := types.VerdictFail
			if usedFallback {
				verdict = types.VerdictInconclusive
				failure += " [fixture resolution fell back to static default]"
			}
			return executor.Result{
				Verdict:  verdict,
				Probes:   []types.ProbeResult{result},
				Failures: []string{failure},
			}
		},
	}
}

// skuEchoCheck verifies that item lookups either echo the requested SKU or
// return 404, and never leak a database error.
func (s *Suite) skuEchoCheck() executor.Check {
	return executor.Check{
		Name: "property/item-sku-echo",
		Run: func(ctx context.Context) executor.Result {
			fix := s.resolver.Resolve(ctx, fixture.KindSKUs)

			var probes []types.ProbeResult
			var failures []string
			for _, sku := range fix.Values {
				target := s.cfg.Targets.APIBaseURL + "/item/" + url.PathEscape(sku)
				c := types.EndpointContract{
					Name:     "item",
					Method:   http.MethodGet,
					Statuses: []int{200, 404},
				}
				outcome, result := s.fetch(ctx, c, target, nil)
				if outcome.Err != nil {
					result.Classification = types.NetworkError
					probes = append(probes, result)
					continue
				}
				switch {
				case payloads.ContainsSQLSignature(outcome.Body):
					result.Classification = types.LeakDetected
					failures = append(failures, fmt.Sprintf("sku %q: database error signature in response", sku))
				case outcome.Status == http.StatusNotFound:
					result.Classification = types.SafelyRejected
				case outcome.Status == http.StatusOK:
					var item struct {
						SKU string `json:"sku"`
					}
					if err := json.Unmarshal(outcome.Body, &item); err != nil || item.SKU != sku {
						result.Classification = types.Inconclusive
						failures = append(failures, fmt.Sprintf("sku %q: response sku %q does not echo request", sku, item.SKU))
					} else {
						result.Classification = types.Accepted
					}
				default:
					result.Classification = types.Inconclusive
					failures = append(failures, fmt.Sprintf("sku %q: unexpected status %d", sku, outcome.Status))
				}
				probes = append(probes, result)
			}

			return s.fixtureAwareResult(fix, probes, failures)
		},
	}
}

// snapshotBoundCheck verifies every snapshot entry predates the requested
// timestamp.
func (s *Suite) snapshotBoundCheck() executor.Check {
	return executor.Check{
		Name: "property/snapshot-time-bound",
		Run: func(ctx context.Context) executor.Result {
			fix := s.resolver.Resolve(ctx, fixture.KindSnapshotTime)
			bound, _ := strconv.ParseInt(fix.Value, 10, 64)

			target := s.cfg.Targets.APIBaseURL + "/snapshot/" + fix.Value
			c := types.EndpointContract{
				Name:     "snapshot",
				Method:   http.MethodGet,
				Statuses: []int{200, 404},
			}
			outcome, result := s.fetch(ctx, c, target, nil)
			if outcome.Err != nil {
				result.Classification = types.NetworkError
				return executor.Result{
					Verdict:  types.VerdictInconclusive,
					Probes:   []types.ProbeResult{result},
					Failures: []string{fmt.Sprintf("request failed: %v", outcome.Err)},
				}
			}

			var entries []struct {
				Time int64 `json:"time"`
			}
			if err := json.Unmarshal(outcome.Body, &entries); err != nil {
				result.Classification = types.Inconclusive
				return executor.Result{
					Verdict:  types.VerdictInconclusive,
					Probes:   []types.ProbeResult{result},
					Failures: []string{fmt.Sprintf("snapshot response is not a JSON array: %v", err)},
				}
			}

			for _, e := range entries {
				if e.Time > bound {
					result.Classification = types.Inconclusive
					return executor.Result{
						Verdict:  types.VerdictFail,
						Probes:   []types.ProbeResult{result},
						Failures: []string{fmt.Sprintf("entry time %d exceeds snapshot bound %d", e.Time, bound)},
					}
				}
			}
			result.Classification = types.Accepted
			return executor.Result{Verdict: types.VerdictPass, Probes: []types.ProbeResult{result}}
		},
	}
}

// statusServicesCheck verifies each monitored service entry in the status
// payload carries its identity, process and uptime-tracking fields, and that
// uptime bars carry a timestamp and a status.
func (s *Suite) statusServicesCheck() executor.Check {
	return executor.Check{
		Name: "property/status-services",
		Run: func(ctx context.Context) executor.Result {
			c := types.EndpointContract{
				Name:     "status",
				Method:   http.MethodGet,
				Statuses: []int{200},
			}
			target := s.cfg.Targets.StatusBaseURL + "/api/status"
			outcome, result := s.fetch(ctx, c, target, nil)
			if outcome.Err != nil {
				result.Classification = types.NetworkError
				return executor.Result{
					Verdict:  types.VerdictInconclusive,
					Probes:   []types.ProbeResult{result},
					Failures: []string{fmt.Sprintf("request failed: %v", outcome.Err)},
				}
			}

			var payload struct {
				Services []map[string]interface{} `json:"services"`
			}
			if err := json.Unmarshal(outcome.Body, &payload); err != nil || len(payload.Services) == 0 {
				result.Classification = types.Inconclusive
				return executor.Result{
					Verdict:  types.VerdictFail,
					Probes:   []types.ProbeResult{result},
					Failures: []string{"status payload has no services array"},
				}
			}

			var failures []string
			for i, service := range payload.Services {
				if v := validate.CheckFields(service, contracts.ServiceFields()); !v.OK {
					failures = append(failures, fmt.Sprintf("service %d: %s (%s)", i, v.Detail, v.Rule))
					continue
				}
				bars, _ := service["uptimeBars"].([]interface{})
				for _, raw := range bars {
					bar, ok := raw.(map[string]interface{})
					if !ok {
						failures = append(failures, fmt.Sprintf("service %d: uptime bar is not an object", i))
						break
					}
					if _, ok := bar["timestamp"]; !ok {
						failures = append(failures, fmt.Sprintf("service %d: uptime bar missing timestamp", i))
						break
					}
					if _, ok := bar["status"]; !ok {
						failures = append(failures, fmt.Sprintf("service %d: uptime bar missing status", i))
						break
					}
				}
			}

			if len(failures) > 0 {
				result.Classification = types.Inconclusive
				return executor.Result{
					Verdict:  types.VerdictFail,
					Probes:   []types.ProbeResult{result},
					Failures: failures,
				}
			}
			result.Classification = types.Accepted
			return executor.Result{Verdict: types.VerdictPass, Probes: []types.ProbeResult{result}}
		},
	}
}

// securitySweepCheck runs the full payload corpus across the injection slot
// matrix. The check fails if and only if a probe classified LeakDetected.
func (s *Suite) securitySweepCheck() executor.Check {
	return executor.Check{
		Name:    "security/payload-sweep",
		Timeout: time.Duration(s.cfg.Suite.SweepTimeout) * time.Second,
		Run: func(ctx context.Context) executor.Result {
			engine := sweep.NewEngine(sweep.Config{
				MaxWorkers: s.cfg.Suite.MaxWorkers,
				Timeout:    time.Duration(s.cfg.Suite.HTTPTimeout) * time.Second,
			}, s.client)

			results := engine.Sweep(ctx, s.sweepSlots(), payloads.Corpus())

			var failures []string
			verdict := types.VerdictPass
			for _, r := range results {
				if r.Classification == types.LeakDetected {
					verdict = types.VerdictFail
					failures = append(failures, fmt.Sprintf(
						"%s %s [%s] leaked on %s payload %q (status %d)",
						r.Method, r.Endpoint, r.Slot, r.Category, r.Payload, r.Status))
				}
			}
			return executor.Result{Verdict: verdict, Probes: results, Failures: failures}
		},
	}
}

// sweepSlots is the {endpoint, parameter position} matrix the corpus is
// applied to, mirroring the surfaces an attacker can reach.
func (s *Suite) sweepSlots() []sweep.Slot {
	api := contracts.API(s.cfg.Targets.APIBaseURL)
	spells := contracts.Spells(s.cfg.Targets.SpellsBaseURL)

	byName := make(map[string]types.EndpointContract, len(api)+len(spells))
	for _, c := range api {
		byName[c.Name] = c
	}
	for _, c := range spells {
		byName["spells/"+c.Name] = c
	}

	slots := []sweep.Slot{
		{Contract: byName["item"], Kind: sweep.SlotPath},
		{Contract: byName["item-history"], Kind: sweep.SlotPath},
		{Contract: byName["item-history"], Kind: sweep.SlotQuery, Params: []string{"start"}},
		{Contract: byName["item-stats"], Kind: sweep.SlotPath},
		{Contract: byName["snapshot"], Kind: sweep.SlotPath},
		{Contract: byName["items"], Kind: sweep.SlotQuery},
		{Contract: byName["items-bulk"], Kind: sweep.SlotBody, BodyFunc: sweep.BulkBody},
		{Contract: byName["items-bulk"], Kind: sweep.SlotBody, BodyFunc: sweep.BulkFloodBody},
		{Contract: byName["autob-item"], Kind: sweep.SlotPath},
		{Contract: byName["autob-price-check"], Kind: sweep.SlotPath},
	}

	// The spell service takes its identifiers in the query string.
	spellTargets := []struct {
		name   string
		params []string
	}{
		{"spells/spell-id-to-name", []string{"id"}},
		{"spells/spell-value", []string{"ids"}},
		{"spells/spell-predict", []string{"spells", "item"}},
		{"spells/item-spell-premium", []string{"item", "ids"}},
	}
	for _, t := range spellTargets {
		c, ok := byName[t.name]
		if !ok {
			continue
		}
		slots = append(slots, sweep.Slot{Contract: c, Kind: sweep.SlotQuery, Params: t.params})
	}

	return slots
}

// concurrencyCheck fans out simultaneous requests against the items listing.
func (s *Suite) concurrencyCheck() executor.Check {
	return executor.Check{
		Name: "load/concurrency",
		Run: func(ctx context.Context) executor.Result {
			prober := probe.NewProber(s.client)
			results := prober.Concurrency(ctx, s.cfg.Targets.APIBaseURL+"/items", s.cfg.Suite.ConcurrencyN)

			if err := probe.VerifyBackpressure(results); err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Probes:   results,
					Failures: []string{err.Error()},
				}
			}
			return executor.Result{Verdict: types.VerdictPass, Probes: results}
		},
	}
}

func (s *Suite) realtimeConnectCheck() executor.Check {
	return executor.Check{
		Name: "realtime/connect",
		Run: func(ctx context.Context) executor.Result {
			session, err := s.harness.Connect(ctx)
			defer session.Close()

			if err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Failures: []string{err.Error()},
				}
			}
			return executor.Result{Verdict: types.VerdictPass}
		},
	}
}

func (s *Suite) realtimeRoundTripCheck() executor.Check {
	return executor.Check{
		Name: "realtime/heartbeat",
		Run: func(ctx context.Context) executor.Result {
			session, err := s.harness.Connect(ctx)
			defer session.Close()

			if err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Failures: []string{err.Error()},
				}
			}

			latency, ok, err := session.MeasureRoundTrip(ctx)
			if err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Failures: []string{err.Error()},
				}
			}
			if !ok {
				// Heartbeat support is optional server behavior; the
				// absence is recorded, not failed.
				return executor.Result{
					Verdict:  types.VerdictPass,
					Failures: []string{"no heartbeat reply within bound (recorded)"},
				}
			}
			return executor.Result{
				Verdict: types.VerdictPass,
				Probes: []types.ProbeResult{{
					Endpoint:       "realtime",
					Method:         "WS",
					Slot:           "heartbeat",
					Duration:       latency,
					Classification: types.Accepted,
				}},
			}
		},
	}
}

func (s *Suite) realtimeHoldCheck() executor.Check {
	return executor.Check{
		Name: "realtime/hold-open",
		Run: func(ctx context.Context) executor.Result {
			session, err := s.harness.Connect(ctx)
			defer session.Close()

			if err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Failures: []string{err.Error()},
				}
			}

			hold := time.Duration(s.cfg.Suite.HoldDuration) * time.Second
			if err := session.HoldOpen(hold); err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Failures: []string{err.Error()},
				}
			}
			return executor.Result{Verdict: types.VerdictPass}
		},
	}
}

func (s *Suite) realtimeFanOutCheck() executor.Check {
	return executor.Check{
		Name: "realtime/fan-out",
		Run: func(ctx context.Context) executor.Result {
			states, err := s.harness.FanOut(ctx, s.cfg.Suite.FanOutSessions)
			if err != nil {
				return executor.Result{
					Verdict:  types.VerdictFail,
					Failures: []string{fmt.Sprintf("fan-out: %v (states: %v)", err, states)},
				}
			}
			return executor.Result{Verdict: types.VerdictPass}
		},
	}
}

// materialize substitutes path-parameter templates with resolved fixtures
// and reports whether any substitution used a fallback value.
func (s *Suite) materialize(ctx context.Context, path string) (string, bool) {
	usedFallback := false
	replace := func(param string, kind fixture.Kind, escape bool) {
		placeholder := "{" + param + "}"
		if !strings.Contains(path, placeholder) {
			return
		}
		fix := s.resolver.Resolve(ctx, kind)
		if fix.Provenance == types.ProvenanceFallback {
			usedFallback = true
		}
		value := fix.Value
		if escape {
			value = url.PathEscape(value)
		}
		path = strings.ReplaceAll(path, placeholder, value)
	}

	replace("sku", fixture.KindSKU, true)
	replace("timestamp", fixture.KindSnapshotTime, false)
	replace("id", fixture.KindSpellID, false)
	return path, usedFallback
}

// requestBody builds a request body for the contracts that need one.
func (s *Suite) requestBody(ctx context.Context, c types.EndpointContract) []byte {
	if c.Name != "items-bulk" {
		return nil
	}
	fix := s.resolver.Resolve(ctx, fixture.KindSKUs)
	body, _ := json.Marshal(map[string]interface{}{"skus": fix.Values})
	return body
}

// fetch performs one request and returns the raw outcome plus a result shell
// for the caller to classify.
func (s *Suite) fetch(ctx context.Context, c types.EndpointContract, target string, body []byte) (payloads.Outcome, types.ProbeResult) {
	result := types.ProbeResult{
		Endpoint: c.Name,
		Method:   c.Method,
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, c.Method, target, reqBody)
	if err != nil {
		result.Error = err.Error()
		return payloads.Outcome{Err: err}, result
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return payloads.Outcome{Err: err}, result
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		result.Error = err.Error()
		return payloads.Outcome{Err: err}, result
	}

	result.Status = resp.StatusCode
	return payloads.Outcome{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, result
}

// fixtureAwareResult aggregates probe outcomes while honoring fixture
// provenance: failures observed against fallback inputs are inconclusive.
func (s *Suite) fixtureAwareResult(fix types.Fixture, probes []types.ProbeResult, failures []string) executor.Result {
	verdict := types.VerdictPass
	for _, p := range probes {
		if p.Classification == types.LeakDetected {
			verdict = types.VerdictFail
		}
	}
	if verdict == types.VerdictPass && len(failures) > 0 {
		verdict = types.VerdictFail
	}
	if verdict == types.VerdictFail && fix.Provenance == types.ProvenanceFallback {
		// Leaks stay hard failures even on fallback inputs.
		hardLeak := false
		for _, p := range probes {
			if p.Classification == types.LeakDetected {
				hardLeak = true
			}
		}
		if !hardLeak {
			verdict = types.VerdictInconclusive
			failures = append(failures, "fixture resolution fell back to static default")
		}
	}
	return executor.Result{Verdict: verdict, Probes: probes, Failures: failures}
}
