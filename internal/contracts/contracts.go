// Package contracts declares the expected response shapes of every endpoint
// under test. The tables are immutable configuration, loaded once and
// consumed by pure validation functions.
package contracts

import (
	"net/http"

	"pricedb-harness/internal/types"
)

func str() types.FieldSpec    { return types.FieldSpec{Type: types.FieldString} }
func num() types.FieldSpec    { return types.FieldSpec{Type: types.FieldNumber} }
func arr() types.FieldSpec    { return types.FieldSpec{Type: types.FieldArray} }
func object() types.FieldSpec { return types.FieldSpec{Type: types.FieldObject} }

func obj(fields map[string]types.FieldSpec) types.FieldSpec {
	return types.FieldSpec{Type: types.FieldObject, Fields: fields}
}

// priceFields is the shape shared by latest-prices entries, single items and
// bulk lookups.
func priceFields() map[string]types.FieldSpec {
	amount := map[string]types.FieldSpec{
		"keys":  num(),
		"metal": num(),
	}
	return map[string]types.FieldSpec{
		"name":   str(),
		"sku":    str(),
		"source": str(),
		"time":   num(),
		"buy":    obj(amount),
		"sell":   obj(amount),
	}
}

func statRange() types.FieldSpec {
	return obj(map[string]types.FieldSpec{
		"min": num(),
		"max": num(),
		"avg": num(),
	})
}

// API returns the contracts for the main pricing API.
func API(base string) []types.EndpointContract {
	sideStats := obj(map[string]types.FieldSpec{
		"count": num(),
		"keys":  statRange(),
		"metal": statRange(),
	})

	return []types.EndpointContract{
		{
			Name:        "health",
			Method:      http.MethodGet,
			Path:        base + "/",
			Statuses:    []int{200},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"status": str(),
				"db":     str(),
			},
		},
		{
			Name:        "items",
			Method:      http.MethodGet,
			Path:        base + "/items",
			Statuses:    []int{200},
			ContentType: "application/json",
			Array:       true,
			Fields: map[string]types.FieldSpec{
				"name": str(),
				"sku":  str(),
			},
		},
		{
			Name:        "latest-prices",
			Method:      http.MethodGet,
			Path:        base + "/latest-prices",
			Statuses:    []int{200},
			ContentType: "application/json",
			Array:       true,
			Fields:      priceFields(),
		},
		{
			Name:        "item",
			Method:      http.MethodGet,
			Path:        base + "/item/{sku}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
			Fields:      priceFields(),
		},
		{
			Name:        "item-history",
			Method:      http.MethodGet,
			Path:        base + "/item-history/{sku}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
			Array:       true,
		},
		{
			Name:        "item-stats",
			Method:      http.MethodGet,
			Path:        base + "/item-stats/{sku}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"buy":  sideStats,
				"sell": sideStats,
			},
		},
		{
			Name:         "graph",
			Method:       http.MethodGet,
			Path:         base + "/graph/{sku}",
			Statuses:     []int{200, 404},
			ContentType:  "text/html",
			BodyContains: "<html",
		},
		{
			Name:        "items-bulk",
			Method:      http.MethodPost,
			Path:        base + "/items-bulk",
			Statuses:    []int{200},
			ContentType: "application/json",
			Array:       true,
			Fields:      priceFields(),
		},
		{
			Name:        "snapshot",
			Method:      http.MethodGet,
			Path:        base + "/snapshot/{timestamp}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
			Array:       true,
		},
		{
			Name:        "autob-items",
			Method:      http.MethodGet,
			Path:        base + "/autob/items",
			Statuses:    []int{200},
			ContentType: "application/json",
		},
		{
			Name:        "autob-item",
			Method:      http.MethodGet,
			Path:        base + "/autob/items/{sku}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
		},
		{
			Name:        "autob-price-check",
			Method:      http.MethodPost,
			Path:        base + "/autob/items/{sku}",
			Statuses:    []int{200, 201, 404, 405},
			ContentType: "application/json",
		},
	}
}

// Spells returns the contracts for the spell analytics service.
func Spells(base string) []types.EndpointContract {
	price := obj(map[string]types.FieldSpec{
		"keys":  num(),
		"metal": num(),
	})

	return []types.EndpointContract{
		{
			Name:        "spells-health",
			Method:      http.MethodGet,
			Path:        base + "/health",
			Statuses:    []int{200},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"status":    str(),
				"timestamp": str(),
				"service":   str(),
				"database":  str(),
			},
		},
		{
			Name:        "spells-stats",
			Method:      http.MethodGet,
			Path:        base + "/stats",
			Statuses:    []int{200},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"totalListings": num(),
				"uniqueSpells":  num(),
				"avgPremium":    num(),
				"lastUpdate":    str(),
				"service":       str(),
			},
		},
		{
			Name:        "spells-list",
			Method:      http.MethodGet,
			Path:        base + "/spell/spells",
			Statuses:    []int{200},
			ContentType: "application/json",
			Array:       true,
			Fields: map[string]types.FieldSpec{
				"id":   num(),
				"name": str(),
			},
		},
		{
			Name:        "spell-id-to-name",
			Method:      http.MethodGet,
			Path:        base + "/spell/spell-id-to-name?id={id}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"id":   num(),
				"name": str(),
			},
		},
		{
			Name:        "spell-analytics",
			Method:      http.MethodGet,
			Path:        base + "/spell/spell-analytics",
			Statuses:    []int{200},
			ContentType: "application/json",
			Array:       true,
			Fields: map[string]types.FieldSpec{
				"spell_combo": arr(),
				"avg_flat":    num(),
				"avg_percent": num(),
				"count":       num(),
			},
		},
		{
			Name:        "spell-value",
			Method:      http.MethodGet,
			Path:        base + "/spell/spell-value?ids={id}",
			Statuses:    []int{200, 404},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"spell_ids":   arr(),
				"avg_flat":    num(),
				"avg_percent": num(),
				"count":       num(),
			},
		},
		{
			Name:        "spell-predict",
			Method:      http.MethodGet,
			Path:        base + "/spell/predict?spells=Exorcism&item=Strange%20Rocket%20Launcher",
			Statuses:    []int{200, 400, 404},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"item_name": str(),
				"spells":    arr(),
				"spell_ids": arr(),
				"base_price": obj(map[string]types.FieldSpec{
					"total_ref": num(),
					"keys":      num(),
					"metal":     num(),
					"formatted": str(),
				}),
				"predictions": obj(map[string]types.FieldSpec{
					"low":  object(),
					"mid":  object(),
					"high": object(),
				}),
				"premium_ranges": object(),
				"multipliers":    arr(),
				"market_data": obj(map[string]types.FieldSpec{
					"avg_flat_premium": num(),
					"sample_size":      num(),
					"confidence":       str(),
				}),
				"method":   str(),
				"key_rate": num(),
			},
		},
		{
			Name:        "item-spell-premium",
			Method:      http.MethodGet,
			Path:        base + "/spell/item-spell-premium?item=Strange%20Scattergun&ids={id}",
			Statuses:    []int{200, 400, 404},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"item":            str(),
				"base_price":      price,
				"spell_premium":   price,
				"total_price":     price,
				"premium_percent": num(),
			},
		},
	}
}

// Status returns the contract for the status aggregation service.
func Status(base string) []types.EndpointContract {
	return []types.EndpointContract{
		{
			Name:        "status",
			Method:      http.MethodGet,
			Path:        base + "/api/status",
			Statuses:    []int{200},
			ContentType: "application/json",
			Fields: map[string]types.FieldSpec{
				"services":   arr(),
				"backpack":   object(),
				"steamLogin": object(),
				"tf2api":     object(),
				"webapi":     object(),
			},
		},
	}
}

// ServiceFields is the per-service shape inside the status payload, including
// the uptime tracking fields.
func ServiceFields() map[string]types.FieldSpec {
	return map[string]types.FieldSpec{
		"name":             str(),
		"pm2Name":          str(),
		"status":           str(),
		"uptime":           num(),
		"restart":          num(),
		"memory":           num(),
		"cpu":              num(),
		"uptimePercentage": num(),
		"uptimeBars":       arr(),
	}
}

// Website returns the contracts for the public HTML pages.
func Website(base string) []types.EndpointContract {
	pages := []struct{ name, path string }{
		{"site-home", "/"},
		{"site-search", "/search"},
		{"site-stats", "/stats"},
		{"site-api-docs", "/api-docs"},
	}
	out := make([]types.EndpointContract, 0, len(pages))
	for _, p := range pages {
		out = append(out, types.EndpointContract{
			Name:         p.name,
			Method:       http.MethodGet,
			Path:         base + p.path,
			Statuses:     []int{200},
			ContentType:  "text/html",
			BodyContains: "<html",
		})
	}
	return out
}
