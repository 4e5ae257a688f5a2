package sweep

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricedb-harness/internal/payloads"
	"pricedb-harness/internal/types"
)

func itemContract(base string) types.EndpointContract {
	return types.EndpointContract{
		Name:        "item",
		Method:      http.MethodGet,
		Path:        base + "/item/{sku}",
		Statuses:    []int{200, 404},
		ContentType: "application/json",
	}
}

func itemsContract(base string) types.EndpointContract {
	return types.EndpointContract{
		Name:        "items",
		Method:      http.MethodGet,
		Path:        base + "/items",
		Statuses:    []int{200},
		ContentType: "application/json",
	}
}

func bulkContract(base string) types.EndpointContract {
	return types.EndpointContract{
		Name:        "items-bulk",
		Method:      http.MethodPost,
		Path:        base + "/items-bulk",
		Statuses:    []int{200},
		ContentType: "application/json",
	}
}

// cleanHandler answers every request like a well-behaved service: unknown
// SKUs are 404, queries are ignored, bulk lookups echo nothing hostile.
func cleanHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.Error(w, `{"error":"item not found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"Key","sku":"5021;6"}]`))
	})
	mux.HandleFunc("/items-bulk", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	return mux
}

func TestSweepCompletesFullMatrix(t *testing.T) {
	srv := httptest.NewServer(cleanHandler())
	defer srv.Close()

	corpus := payloads.Corpus()
	slots := []Slot{
		{Contract: itemContract(srv.URL), Kind: SlotPath},
		{Contract: itemsContract(srv.URL), Kind: SlotQuery}, // 4 default candidates
		{Contract: bulkContract(srv.URL), Kind: SlotBody, BodyFunc: BulkBody},
	}

	engine := NewEngine(Config{MaxWorkers: 8, Timeout: 5 * time.Second}, srv.Client())
	results := engine.Sweep(context.Background(), slots, corpus)

	// One probe per path slot and body slot, one per query candidate.
	want := len(corpus) * (1 + len(DefaultQueryParams) + 1)
	assert.Len(t, results, want)

	for _, r := range results {
		assert.NotEmpty(t, r.Classification, "every probe must be classified")
	}
}

func TestSweepCleanServerHasNoLeaks(t *testing.T) {
	srv := httptest.NewServer(cleanHandler())
	defer srv.Close()

	engine := NewEngine(Config{MaxWorkers: 8, Timeout: 5 * time.Second}, srv.Client())
	results := engine.Sweep(context.Background(),
		[]Slot{{Contract: itemContract(srv.URL), Kind: SlotPath}},
		payloads.Corpus())

	for _, r := range results {
		assert.NotEqual(t, types.LeakDetected, r.Classification,
			"payload %q should not leak", r.Payload)
	}
}

func TestSweepDetectsSQLErrorLeak(t *testing.T) {
	// Simulates a service that concatenates the path segment into a query.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sku, _ := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/item/"))
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(sku, "'") {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "You have an error in your SQL syntax near '" + sku + "'",
			})
			return
		}
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	engine := NewEngine(Config{MaxWorkers: 4, Timeout: 5 * time.Second}, srv.Client())
	results := engine.Sweep(context.Background(),
		[]Slot{{Contract: itemContract(srv.URL), Kind: SlotPath}},
		payloads.ByCategory(types.CategorySQLInjection))

	leaks := 0
	for _, r := range results {
		if r.Classification == types.LeakDetected {
			leaks++
		}
	}
	assert.Greater(t, leaks, 0, "quote-bearing payloads must classify as leaks")
}

func TestSweepDetectsReflectedXSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sku, _ := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/item/"))
		w.Header().Set("Content-Type", "application/json")
		// Echoes the raw input without encoding.
		w.Write([]byte(`{"requested":"` + sku + `"}`))
	}))
	defer srv.Close()

	engine := NewEngine(Config{MaxWorkers: 4, Timeout: 5 * time.Second}, srv.Client())
	results := engine.Sweep(context.Background(),
		[]Slot{{Contract: itemContract(srv.URL), Kind: SlotPath}},
		payloads.ByCategory(types.CategoryXSS))

	leaks := 0
	for _, r := range results {
		if r.Classification == types.LeakDetected {
			leaks++
		}
	}
	assert.Equal(t, len(results), leaks, "every reflected script payload is a leak")
}

func TestSweepSurvivesUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(cleanHandler())
	srv.Close() // probes must record NetworkError, not abort

	engine := NewEngine(Config{MaxWorkers: 4, Timeout: 2 * time.Second}, nil)
	corpus := payloads.ByCategory(types.CategoryControlChar)
	results := engine.Sweep(context.Background(),
		[]Slot{{Contract: itemContract(srv.URL), Kind: SlotPath}},
		corpus)

	require.Len(t, results, len(corpus))
	for _, r := range results {
		assert.Equal(t, types.NetworkError, r.Classification)
		assert.NotEmpty(t, r.Error)
	}
}

func TestExpandQueryUsesCandidateNames(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	slot := Slot{
		Contract: itemsContract("http://example.test"),
		Kind:     SlotQuery,
		Params:   []string{"search", "sku"},
	}
	specs := engine.expand(slot, types.Payload{Value: "' OR 1=1 --", Category: types.CategorySQLInjection})

	require.Len(t, specs, 2)
	assert.Contains(t, specs[0].url, "search=")
	assert.Contains(t, specs[1].url, "sku=")
	for _, spec := range specs {
		assert.NotContains(t, spec.url, " ", "payload must be query-escaped")
	}
}

func TestExpandPathEscapesPayload(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	slot := Slot{Contract: itemContract("http://example.test"), Kind: SlotPath}
	specs := engine.expand(slot, types.Payload{Value: "'; DROP TABLE users; --", Category: types.CategorySQLInjection})

	require.Len(t, specs, 1)
	assert.NotContains(t, specs[0].url, " ")
	assert.NotContains(t, specs[0].url, "{sku}")
}

func TestFillTemplate(t *testing.T) {
	assert.Equal(t, "/item/x", fillTemplate("/item/{sku}", "x"))
	assert.Equal(t, "/a/x/b/x", fillTemplate("/a/{one}/b/{two}", "x"))
	assert.Equal(t, "/plain", fillTemplate("/plain", "x"))
}

func TestBulkFloodBody(t *testing.T) {
	body, contentType := BulkFloodBody("' OR '1'='1")
	assert.Equal(t, "application/json", contentType)

	var decoded struct {
		SKUs []string `json:"skus"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.SKUs, 100)
	for _, sku := range decoded.SKUs {
		assert.Len(t, sku, 1024)
	}
	assert.True(t, strings.HasPrefix(decoded.SKUs[0], "' OR '1'='1"))
}

func TestSweepOversizedBulkIsRejectedNotCrashed(t *testing.T) {
	// The service refuses oversized arrays with 413; that is a safe
	// rejection, never a crash-class outcome.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		var req struct {
			SKUs []string `json:"skus"`
		}
		w.Header().Set("Content-Type", "application/json")
		if json.Unmarshal(body, &req) == nil && len(req.SKUs) > 50 {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte(`{"error":"too many skus"}`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	engine := NewEngine(Config{MaxWorkers: 4, Timeout: 5 * time.Second}, srv.Client())
	results := engine.Sweep(context.Background(),
		[]Slot{{Contract: bulkContract(srv.URL), Kind: SlotBody, BodyFunc: BulkFloodBody}},
		payloads.ByCategory(types.CategoryOversize))

	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, types.SafelyRejected, r.Classification)
	}
}

func TestBulkBody(t *testing.T) {
	body, contentType := BulkBody("' OR '1'='1")
	assert.Equal(t, "application/json", contentType)

	var decoded struct {
		SKUs []string `json:"skus"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.SKUs, 2)
	assert.Equal(t, "' OR '1'='1", decoded.SKUs[0])
}
