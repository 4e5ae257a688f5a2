// Package fixture resolves dynamic test inputs from the live listing
// endpoints, with static fallbacks when resolution fails. Resolution never
// returns an error: a failed lookup degrades to a fallback fixture marked
// with its provenance, so dependent checks can attribute their outcome.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pricedb-harness/internal/types"
)

// Kind names a resolvable fixture.
type Kind string

const (
	KindSKU          Kind = "sku"
	KindSKUs         Kind = "skus"
	KindSpellID      Kind = "spell-id"
	KindSnapshotTime Kind = "snapshot-time"
)

const (
	fallbackSKU     = "40;11;kt-3"
	fallbackSpellID = "2003"

	// maxSKUs bounds multi-value resolution; consumers take what they need.
	maxSKUs = 3

	snapshotAge = 7 * 24 * time.Hour
)

// Resolver resolves fixtures against the live listing endpoints and caches
// them for the rest of the run. The cache is read-mostly and safe for
// concurrent use; fixtures are never mutated after resolution.
type Resolver struct {
	client     *http.Client
	apiBase    string
	spellsBase string

	mu    sync.RWMutex
	cache map[Kind]types.Fixture
}

// NewResolver creates a new fixture resolver
func NewResolver(apiBase, spellsBase string, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{
		client:     client,
		apiBase:    apiBase,
		spellsBase: spellsBase,
		cache:      make(map[Kind]types.Fixture),
	}
}

// Resolve returns the fixture for kind, resolving it on first need. On any
// failure (network error, non-2xx status, empty listing) the hard-coded
// fallback is returned instead.
func (r *Resolver) Resolve(ctx context.Context, kind Kind) types.Fixture {
	r.mu.RLock()
	cached, ok := r.cache[kind]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	f := r.resolve(ctx, kind)

	r.mu.Lock()
	r.cache[kind] = f
	r.mu.Unlock()
	return f
}

func (r *Resolver) resolve(ctx context.Context, kind Kind) types.Fixture {
	switch kind {
	case KindSKU:
		skus, err := r.listSKUs(ctx, 1)
		if err != nil || len(skus) == 0 {
			return fallback(kind, fallbackSKU)
		}
		return types.Fixture{
			Kind:       string(kind),
			Value:      skus[0],
			Values:     skus,
			Provenance: types.ProvenanceLive,
		}
	case KindSKUs:
		skus, err := r.listSKUs(ctx, maxSKUs)
		if err != nil || len(skus) == 0 {
			return fallback(kind, fallbackSKU)
		}
		return types.Fixture{
			Kind:       string(kind),
			Value:      skus[0],
			Values:     skus,
			Provenance: types.ProvenanceLive,
		}
	case KindSpellID:
		id, err := r.firstSpellID(ctx)
		if err != nil {
			return fallback(kind, fallbackSpellID)
		}
		return types.Fixture{
			Kind:       string(kind),
			Value:      id,
			Values:     []string{id},
			Provenance: types.ProvenanceLive,
		}
	case KindSnapshotTime:
		// Computed locally; cannot fail, so it counts as live.
		t := strconv.FormatInt(time.Now().Add(-snapshotAge).Unix(), 10)
		return types.Fixture{
			Kind:       string(kind),
			Value:      t,
			Values:     []string{t},
			Provenance: types.ProvenanceLive,
		}
	default:
		return fallback(kind, fallbackSKU)
	}
}

func fallback(kind Kind, value string) types.Fixture {
	return types.Fixture{
		Kind:       string(kind),
		Value:      value,
		Values:     []string{value},
		Provenance: types.ProvenanceFallback,
	}
}

func (r *Resolver) listSKUs(ctx context.Context, n int) ([]string, error) {
	var items []struct {
		Name string `json:"name"`
		SKU  string `json:"sku"`
	}
	if err := r.getJSON(ctx, r.apiBase+"/items", &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("items listing is empty")
	}
	if n > len(items) {
		n = len(items)
	}
	skus := make([]string, 0, n)
	for _, item := range items[:n] {
		skus = append(skus, item.SKU)
	}
	return skus, nil
}

func (r *Resolver) firstSpellID(ctx context.Context) (string, error) {
	var spells []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := r.getJSON(ctx, r.spellsBase+"/spell/spells", &spells); err != nil {
		return "", err
	}
	if len(spells) == 0 {
		return "", fmt.Errorf("spell listing is empty")
	}
	return strconv.Itoa(spells[0].ID), nil
}

func (r *Resolver) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
