package fixture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricedb-harness/internal/types"
)

func newListingServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"Mann Co. Supply Crate Key","sku":"5021;6"},` +
			`{"name":"Tour of Duty Ticket","sku":"725;6;uncraftable"},` +
			`{"name":"Refined Metal","sku":"5002;6"},` +
			`{"name":"Scrap Metal","sku":"5000;6"}]`))
	})
	mux.HandleFunc("/spell/spells", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":2003,"name":"Pumpkin Bombs"},{"id":2002,"name":"Halloween Fire"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveSKULive(t *testing.T) {
	srv := newListingServer(t, nil)
	r := NewResolver(srv.URL, srv.URL, srv.Client())

	fix := r.Resolve(context.Background(), KindSKU)
	assert.Equal(t, "5021;6", fix.Value)
	assert.Equal(t, types.ProvenanceLive, fix.Provenance)
}

func TestResolveSKUsTakesFirstThree(t *testing.T) {
	srv := newListingServer(t, nil)
	r := NewResolver(srv.URL, srv.URL, srv.Client())

	fix := r.Resolve(context.Background(), KindSKUs)
	require.Len(t, fix.Values, 3)
	assert.Equal(t, []string{"5021;6", "725;6;uncraftable", "5002;6"}, fix.Values)
	assert.Equal(t, types.ProvenanceLive, fix.Provenance)
}

func TestResolveCaches(t *testing.T) {
	var hits atomic.Int64
	srv := newListingServer(t, &hits)
	r := NewResolver(srv.URL, srv.URL, srv.Client())

	ctx := context.Background()
	first := r.Resolve(ctx, KindSKU)
	second := r.Resolve(ctx, KindSKU)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolveFallbackOnUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // resolution must degrade, not error

	r := NewResolver(srv.URL, srv.URL, &http.Client{Timeout: time.Second})
	fix := r.Resolve(context.Background(), KindSKU)

	assert.Equal(t, "40;11;kt-3", fix.Value)
	assert.Equal(t, types.ProvenanceFallback, fix.Provenance)
}

func TestResolveFallbackOnEmptyListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewResolver(srv.URL, srv.URL, srv.Client())
	fix := r.Resolve(context.Background(), KindSKU)
	assert.Equal(t, types.ProvenanceFallback, fix.Provenance)
}

func TestResolveFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, srv.URL, srv.Client())
	fix := r.Resolve(context.Background(), KindSpellID)
	assert.Equal(t, "2003", fix.Value)
	assert.Equal(t, types.ProvenanceFallback, fix.Provenance)
}

func TestResolveSpellIDLive(t *testing.T) {
	srv := newListingServer(t, nil)
	r := NewResolver(srv.URL, srv.URL, srv.Client())

	fix := r.Resolve(context.Background(), KindSpellID)
	assert.Equal(t, "2003", fix.Value)
	assert.Equal(t, types.ProvenanceLive, fix.Provenance)
}

func TestResolveSnapshotTime(t *testing.T) {
	r := NewResolver("http://unused.invalid", "http://unused.invalid", &http.Client{Timeout: time.Second})
	fix := r.Resolve(context.Background(), KindSnapshotTime)

	ts, err := strconv.ParseInt(fix.Value, 10, 64)
	require.NoError(t, err)

	weekAgo := time.Now().Add(-7 * 24 * time.Hour).Unix()
	assert.InDelta(t, weekAgo, ts, 5)
	assert.Equal(t, types.ProvenanceLive, fix.Provenance)
}
