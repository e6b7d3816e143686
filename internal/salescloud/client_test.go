package salescloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		APIVersion: "v65.0",
		AuthToken:  "token-123",
	}, zap.NewNop())
}

func TestPlaceGraph_EncodesRecordsAndRefs(t *testing.T) {
	var captured map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/services/data/v65.0/connect/rev/sales-transaction/actions/place", r.URL.Path)
		require.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"graphs": []map[string]any{{
				"graphId":      "period-2",
				"isSuccessful": true,
				"graphResponse": map[string]any{
					"compositeResponse": []map[string]any{
						{"referenceId": "refGroup_P2", "httpStatusCode": 201, "body": map[string]any{"id": "0g1000001", "success": true}},
					},
				},
			}},
		})
	})

	records := []quotedomain.GraphRecord{
		{
			ReferenceID: "refGroup_P2",
			Entity:      quotedomain.EntityQuoteLineGroup,
			Method:      quotedomain.MethodCreate,
			Fields:      map[string]any{"Name": "Year 2"},
		},
		{
			ReferenceID: "refParentLine_P2",
			Entity:      quotedomain.EntityQuoteLine,
			Method:      quotedomain.MethodCreate,
			Fields:      map[string]any{"QuoteLineGroupId": quotedomain.PendingRef("refGroup_P2")},
		},
	}

	result, err := client.PlaceGraph(context.Background(), "period-2", records, PlaceOptions{Save: true, GroupRampAction: "EditGroup"})
	require.NoError(t, err)

	id, ok := result.ID("refGroup_P2")
	require.True(t, ok)
	assert.Equal(t, "0g1000001", id)

	assert.Equal(t, true, captured["save"])
	assert.Equal(t, "EditGroup", captured["groupRampAction"])
	assert.Equal(t, "System", captured["pricingPref"])

	// Group edits carry none of the period placement preferences.
	assert.NotContains(t, captured, "catalogRatesPref")
	assert.NotContains(t, captured, "taxPref")

	graphs := captured["graphs"].([]any)
	require.Len(t, graphs, 1)
	wireRecords := graphs[0].(map[string]any)["records"].([]any)
	require.Len(t, wireRecords, 2)

	first := wireRecords[0].(map[string]any)
	assert.Equal(t, "refGroup_P2", first["referenceId"])
	attrs := first["record"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "QuoteLineGroup", attrs["type"])
	assert.Equal(t, "POST", attrs["method"])

	// The pending ref is lowered to forward-reference notation only on
	// the wire.
	second := wireRecords[1].(map[string]any)["record"].(map[string]any)
	assert.Equal(t, "@{refGroup_P2.id}", second["QuoteLineGroupId"])
}

func TestPlaceGraph_PeriodPlacementPrefs(t *testing.T) {
	var captured map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"graphs": []map[string]any{{"graphId": "g", "isSuccessful": true}},
		})
	})

	_, err := client.PlaceGraph(context.Background(), "g", nil, PlaceOptions{})
	require.NoError(t, err)

	assert.Equal(t, "System", captured["pricingPref"])
	assert.Equal(t, "Skip", captured["catalogRatesPref"])
	assert.Equal(t, "Skip", captured["taxPref"])
	assert.NotContains(t, captured, "save")
	assert.NotContains(t, captured, "groupRampAction")

	confPref := captured["configurationPref"].(map[string]any)
	assert.Equal(t, "Skip", confPref["configurationMethod"])
	confOpts := confPref["configurationOptions"].(map[string]any)
	assert.Equal(t, true, confOpts["validateProductCatalog"])
	assert.Equal(t, true, confOpts["validateAmendRenewCancel"])
	assert.Equal(t, true, confOpts["executeConfigurationRules"])
	assert.Equal(t, false, confOpts["addDefaultConfiguration"])

	assert.Contains(t, captured, "contextDetails")
}

func TestPlaceGraph_UpdateCarriesTargetID(t *testing.T) {
	var captured map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"graphs": []map[string]any{{"graphId": "g", "isSuccessful": true}},
		})
	})

	records := []quotedomain.GraphRecord{{
		ReferenceID: "refQuote",
		Entity:      quotedomain.EntityQuote,
		Method:      quotedomain.MethodUpdate,
		Target:      quotedomain.KnownRef("0Q0000001"),
		Fields:      map[string]any{},
	}}

	_, err := client.PlaceGraph(context.Background(), "g", records, PlaceOptions{})
	require.NoError(t, err)

	graphs := captured["graphs"].([]any)
	rec := graphs[0].(map[string]any)["records"].([]any)[0].(map[string]any)
	attrs := rec["record"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "0Q0000001", attrs["id"])
	assert.Equal(t, "PATCH", attrs["method"])
}

func TestPlaceGraph_RejectedGraph(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"graphs": []map[string]any{{
				"graphId":      "period-3",
				"isSuccessful": false,
				"graphResponse": map[string]any{
					"compositeResponse": []map[string]any{
						{
							"referenceId":    "refChildLine_P3_1",
							"httpStatusCode": 400,
							"body": map[string]any{
								"errors": []map[string]any{{"errorCode": "FIELD_INTEGRITY_EXCEPTION", "message": "bad product"}},
							},
						},
					},
				},
			}},
		})
	})

	_, err := client.PlaceGraph(context.Background(), "period-3", nil, PlaceOptions{})
	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, "period-3", graphErr.GraphID)
	assert.Equal(t, "FIELD_INTEGRITY_EXCEPTION", graphErr.Code)
}

func TestPlaceGraph_TransportFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.PlaceGraph(context.Background(), "g", nil, PlaceOptions{})
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestPlaceGraph_MissingToken(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost", APIVersion: "v65.0"}, zap.NewNop())
	_, err := client.PlaceGraph(context.Background(), "g", nil, PlaceOptions{})
	assert.ErrorIs(t, err, ErrMissingAuthToken)
}

func TestRelationshipTypeID(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/data/v65.0/query", r.URL.Path)
		require.Contains(t, r.URL.Query().Get("q"), "ProductRelationshipType")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 1,
			"records":   []map[string]any{{"Id": "0yR000001", "Name": "Bundle Component"}},
		})
	})

	id, err := client.RelationshipTypeID(context.Background(), "Bundle Component")
	require.NoError(t, err)
	assert.Equal(t, "0yR000001", id)
}

func TestRelationshipTypeID_NotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"totalSize": 0, "records": []any{}})
	})

	_, err := client.RelationshipTypeID(context.Background(), "Missing")
	assert.ErrorIs(t, err, ErrRelationshipTypeNotFound)
}

func TestQuoteSnapshot(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/data/v65.0/sobjects/Quote/0Q0000001", r.URL.Path)
		_ = json.NewEncoder(w).Encode(QuoteSnapshot{ID: "0Q0000001", Name: "ACME Ramp", TotalPrice: 4200})
	})

	snapshot, err := client.QuoteSnapshot(context.Background(), "0Q0000001")
	require.NoError(t, err)
	assert.Equal(t, "ACME Ramp", snapshot.Name)
	assert.InDelta(t, 4200, snapshot.TotalPrice, 0.001)
}

func TestQuoteLines(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Query().Get("q"), "QuoteLineItem")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 2,
			"records": []map[string]any{
				{"Id": "0QL000001", "Product2Id": "01t00000A"},
				{"Id": "0QL000002", "Product2Id": "01t00000B"},
			},
		})
	})

	lines, err := client.QuoteLines(context.Background(), "0Q0000001")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "0QL000001", lines[0].ID)
}

func TestBundleCatalog(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/data/v65.0/connect/cpq/products/01t00000A", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Catalog{
			ProductID: "01t00000A",
			Groups: []ComponentGroup{{
				Name: "Users",
				Components: []Component{{
					ProductID: "01t00000B",
					Prices: []ComponentPrice{
						{PriceBookEntryID: "01u1", UnitPrice: 100, IsDefault: true},
						{PriceBookEntryID: "01u2", UnitPrice: 90, IsSelected: true},
					},
				}},
			}},
		})
	})

	catalog, err := client.BundleCatalog(context.Background(), "01t00000A")
	require.NoError(t, err)
	require.Len(t, catalog.Groups, 1)

	price, ok := catalog.Groups[0].Components[0].DefaultPrice()
	require.True(t, ok)
	assert.Equal(t, "01u2", price.PriceBookEntryID)
}
