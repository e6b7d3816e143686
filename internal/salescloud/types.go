package salescloud

// Config points the client at one backend org.
type Config struct {
	BaseURL    string
	APIVersion string
	AuthToken  string
}

// PlaceOptions tune how the backend processes a submitted graph.
type PlaceOptions struct {
	GroupRampAction string
	Save            bool
}

// PlaceResult maps each graph reference id to the id the backend
// assigned to the created record.
type PlaceResult struct {
	GraphID   string
	RecordIDs map[string]string
}

// ID returns the created id behind a reference id, if any.
func (r PlaceResult) ID(referenceID string) (string, bool) {
	id, ok := r.RecordIDs[referenceID]
	return id, ok
}

// QuoteSnapshot is the read-back view of a quote after a save.
type QuoteSnapshot struct {
	ID         string  `json:"Id"`
	Name       string  `json:"Name"`
	Status     string  `json:"Status"`
	TotalPrice float64 `json:"TotalPrice"`
	StartDate  string  `json:"StartDate"`
	EndDate    string  `json:"EndDate"`
}

// QuoteLine is one persisted line item on a quote.
type QuoteLine struct {
	ID               string `json:"Id"`
	ProductID        string `json:"Product2Id"`
	QuoteLineGroupID string `json:"QuoteLineGroupId"`
}

// RelationshipType is a backend line relationship type row.
type RelationshipType struct {
	ID    string `json:"Id"`
	Label string `json:"Name"`
}

// Catalog is the component breakdown of a bundle product.
type Catalog struct {
	ProductID string           `json:"productId"`
	Groups    []ComponentGroup `json:"productComponentGroups"`
}

// ComponentGroup is one selectable group of bundle components.
type ComponentGroup struct {
	Name       string      `json:"name"`
	Components []Component `json:"components"`
}

// Component is one product inside a component group.
type Component struct {
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName"`
	Prices      []ComponentPrice `json:"prices"`
}

// ComponentPrice is a price book entry for a component.
type ComponentPrice struct {
	PriceBookEntryID string  `json:"priceBookEntryId"`
	UnitPrice        float64 `json:"unitPrice"`
	CurrencyCode     string  `json:"currencyIsoCode"`
	IsDefault        bool    `json:"isDefault"`
	IsSelected       bool    `json:"isSelected"`
	Frequency        string  `json:"frequency"`
}

// DefaultPrice picks the selected price, falling back to the default.
func (c Component) DefaultPrice() (ComponentPrice, bool) {
	for _, p := range c.Prices {
		if p.IsSelected {
			return p, true
		}
	}
	for _, p := range c.Prices {
		if p.IsDefault {
			return p, true
		}
	}
	if len(c.Prices) > 0 {
		return c.Prices[0], true
	}
	return ComponentPrice{}, false
}
