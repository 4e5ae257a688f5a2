// Package probe issues simultaneous requests against one endpoint and checks
// the aggregate status distribution. The service may serve (200) or apply
// backpressure (429, 503); any other status means it mishandled the load.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"pricedb-harness/internal/types"
)

// allowedStatuses is the acceptable outcome set under concurrent load.
var allowedStatuses = map[int]bool{
	http.StatusOK:                 true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

// Prober runs concurrency probes
type Prober struct {
	client *http.Client
}

// NewProber creates a new concurrency prober
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Prober{client: client}
}

// Concurrency dispatches n requests to url with no artificial delay and
// collects every outcome, including network failures, before returning. No
// ordering between the n requests is assumed; only the distribution matters.
func (p *Prober) Concurrency(ctx context.Context, endpoint string, n int) []types.ProbeResult {
	results := make([]types.ProbeResult, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.one(ctx, endpoint)
		}(i)
	}

	wg.Wait()
	return results
}

func (p *Prober) one(ctx context.Context, endpoint string) types.ProbeResult {
	result := types.ProbeResult{
		Endpoint: endpoint,
		Method:   http.MethodGet,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		result.Classification = types.NetworkError
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	result.Duration = time.Since(start)

	if err != nil {
		result.Classification = types.NetworkError
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	result.Status = resp.StatusCode
	if allowedStatuses[resp.StatusCode] {
		result.Classification = types.Accepted
	} else {
		result.Classification = types.Inconclusive
	}
	return result
}

// Distribution counts observed statuses. Network errors are keyed under 0.
func Distribution(results []types.ProbeResult) map[int]int {
	dist := make(map[int]int)
	for _, r := range results {
		dist[r.Status]++
	}
	return dist
}

// VerifyBackpressure returns an error naming every disallowed status in the
// results. Network errors are logged outcomes, not violations.
func VerifyBackpressure(results []types.ProbeResult) error {
	var bad []int
	for _, r := range results {
		if r.Classification == types.NetworkError {
			continue
		}
		if !allowedStatuses[r.Status] {
			bad = append(bad, r.Status)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Ints(bad)
	return fmt.Errorf("disallowed statuses under load: %v", bad)
}
