// Package salescloud is the HTTP client for the remote sales
// transaction backend: composite graph placement, quote read-back and
// bundle catalog lookups.
package salescloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"go.uber.org/zap"
)

var (
	ErrMissingAuthToken = errors.New("missing_auth_token")

	// ErrRequestFailed covers transport-level failures: the backend
	// could not be reached or returned no usable body.
	ErrRequestFailed = errors.New("backend_request_failed")

	ErrResponseInvalid          = errors.New("backend_response_invalid")
	ErrRelationshipTypeNotFound = errors.New("relationship_type_not_found")
)

// GraphError is a backend rejection of a submitted graph. The whole
// graph rolls back server-side; nothing was persisted.
type GraphError struct {
	GraphID string
	Code    string
	Message string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph %s rejected: %s %s", e.GraphID, e.Code, e.Message)
}

type Client struct {
	cfg    Config
	log    *zap.Logger
	client *http.Client
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		log:    log.Named("salescloud.client"),
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

// PlaceGraph submits one composite graph. The backend treats the graph
// as a single transaction; on rejection a GraphError is returned and no
// record was created.
func (c *Client) PlaceGraph(ctx context.Context, graphID string, records []quotedomain.GraphRecord, opts PlaceOptions) (PlaceResult, error) {
	payload := map[string]any{
		"graphs": []map[string]any{
			{
				"graphId": graphID,
				"records": encodeRecords(records),
			},
		},
		"pricingPref": "System",
	}
	if opts.GroupRampAction != "" {
		// Group edits carry only the ramp action and pricing
		// preference.
		payload["groupRampAction"] = opts.GroupRampAction
	} else {
		payload["catalogRatesPref"] = "Skip"
		payload["configurationPref"] = map[string]any{
			"configurationMethod": "Skip",
			"configurationOptions": map[string]any{
				"validateProductCatalog":    true,
				"validateAmendRenewCancel":  true,
				"executeConfigurationRules": true,
				"addDefaultConfiguration":   false,
			},
		}
		payload["taxPref"] = "Skip"
		payload["contextDetails"] = map[string]any{}
	}
	if opts.Save {
		payload["save"] = true
	}

	var resp placeResponse
	path := c.connectPath("/connect/rev/sales-transaction/actions/place")
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return PlaceResult{}, err
	}
	if len(resp.Graphs) == 0 {
		return PlaceResult{}, ErrResponseInvalid
	}

	graph := resp.Graphs[0]
	if !graph.IsSuccessful {
		code, message := graph.firstError()
		return PlaceResult{}, &GraphError{GraphID: graphID, Code: code, Message: message}
	}

	result := PlaceResult{GraphID: graphID, RecordIDs: map[string]string{}}
	for _, rec := range graph.GraphResponse.CompositeResponse {
		if rec.Body.ID != "" {
			result.RecordIDs[rec.ReferenceID] = rec.Body.ID
		}
	}
	return result, nil
}

// QuoteSnapshot reads a quote back after a completed save.
func (c *Client) QuoteSnapshot(ctx context.Context, quoteID string) (QuoteSnapshot, error) {
	var snapshot QuoteSnapshot
	path := c.connectPath("/sobjects/Quote/" + url.PathEscape(quoteID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &snapshot); err != nil {
		return QuoteSnapshot{}, err
	}
	if snapshot.ID == "" {
		return QuoteSnapshot{}, ErrResponseInvalid
	}
	return snapshot, nil
}

// QuoteLines lists the persisted line items of a quote.
func (c *Client) QuoteLines(ctx context.Context, quoteID string) ([]QuoteLine, error) {
	soql := fmt.Sprintf("SELECT Id, Product2Id, QuoteLineGroupId FROM QuoteLineItem WHERE QuoteId = '%s' ORDER BY CreatedDate", quoteID)
	var resp queryResponse[QuoteLine]
	if err := c.query(ctx, soql, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// RelationshipTypeID resolves a line relationship type by its label.
func (c *Client) RelationshipTypeID(ctx context.Context, label string) (string, error) {
	soql := fmt.Sprintf("SELECT Id, Name FROM ProductRelationshipType WHERE Name = '%s' LIMIT 1", label)
	var resp queryResponse[RelationshipType]
	if err := c.query(ctx, soql, &resp); err != nil {
		return "", err
	}
	if len(resp.Records) == 0 {
		return "", ErrRelationshipTypeNotFound
	}
	return resp.Records[0].ID, nil
}

// BundleCatalog fetches the component breakdown of a bundle product.
func (c *Client) BundleCatalog(ctx context.Context, productID string) (Catalog, error) {
	var catalog Catalog
	path := c.connectPath("/connect/cpq/products/" + url.PathEscape(productID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &catalog); err != nil {
		return Catalog{}, err
	}
	if catalog.ProductID == "" {
		catalog.ProductID = productID
	}
	return catalog, nil
}

type queryResponse[T any] struct {
	TotalSize int `json:"totalSize"`
	Records   []T `json:"records"`
}

func (c *Client) query(ctx context.Context, soql string, out any) error {
	path := c.connectPath("/query") + "?q=" + url.QueryEscape(soql)
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

type placeResponse struct {
	Graphs []placeGraph `json:"graphs"`
}

type placeGraph struct {
	GraphID       string `json:"graphId"`
	IsSuccessful  bool   `json:"isSuccessful"`
	GraphResponse struct {
		CompositeResponse []struct {
			ReferenceID    string `json:"referenceId"`
			HTTPStatusCode int    `json:"httpStatusCode"`
			Body           struct {
				ID      string     `json:"id"`
				Errors  []apiError `json:"errors"`
				Success bool       `json:"success"`
			} `json:"body"`
		} `json:"compositeResponse"`
	} `json:"graphResponse"`
}

func (g placeGraph) firstError() (string, string) {
	for _, rec := range g.GraphResponse.CompositeResponse {
		if rec.HTTPStatusCode >= http.StatusBadRequest {
			for _, e := range rec.Body.Errors {
				return e.ErrorCode, e.Message
			}
			return "unknown_error", rec.ReferenceID
		}
	}
	return "unknown_error", ""
}

type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

func (c *Client) connectPath(suffix string) string {
	return "/services/data/" + c.cfg.APIVersion + suffix
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	if strings.TrimSpace(c.cfg.AuthToken) == "" {
		return ErrMissingAuthToken
	}

	var bodyReader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(raw)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErrs []apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErrs); err != nil || len(apiErrs) == 0 {
			return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
		}
		c.log.Warn("backend request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error_code", apiErrs[0].ErrorCode),
		)
		return fmt.Errorf("%w: %s %s", ErrRequestFailed, apiErrs[0].ErrorCode, apiErrs[0].Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}

// encodeRecords lowers domain graph records to the backend wire shape.
// Pending refs become the backend's forward-reference notation here and
// nowhere else.
func encodeRecords(records []quotedomain.GraphRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		attributes := map[string]any{
			"type":   rec.Entity,
			"method": strings.ToUpper(string(rec.Method)),
		}
		if id, ok := rec.Target.Known(); ok {
			attributes["id"] = id
		}

		record := map[string]any{"attributes": attributes}
		for name, value := range rec.Fields {
			record[name] = encodeValue(value)
		}

		out = append(out, map[string]any{
			"referenceId": rec.ReferenceID,
			"record":      record,
		})
	}
	return out
}

func encodeValue(value any) any {
	switch v := value.(type) {
	case quotedomain.Ref:
		if id, ok := v.Known(); ok {
			return id
		}
		if refID, ok := v.Pending(); ok {
			return "@{" + refID + ".id}"
		}
		return nil
	case decimal.Decimal:
		return v.InexactFloat64()
	default:
		return value
	}
}
