// Package pricing resolves bundle catalog components into the product
// and price book entry ids a period needs before submission.
package pricing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rampline/internal/cache"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/smallbiznis/rampline/internal/salescloud"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Catalog group names the backend uses for bundle components.
const (
	groupPlatform = "platform"
	groupUsers    = "users"
	groupNonProd  = "non-production"
)

// CatalogAPI is the slice of the backend client the resolver uses.
type CatalogAPI interface {
	BundleCatalog(ctx context.Context, productID string) (salescloud.Catalog, error)
	RelationshipTypeID(ctx context.Context, label string) (string, error)
}

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	Client *salescloud.Client
	Cache  cache.CatalogResolverCache
}

type Service struct {
	log   *zap.Logger
	api   CatalogAPI
	cache cache.CatalogResolverCache
}

func NewService(p ServiceParam) *Service {
	return &Service{
		log:   p.Log.Named("pricing.service"),
		api:   p.Client,
		cache: p.Cache,
	}
}

// Catalog fetches a bundle catalog, served from cache when warm.
func (s *Service) Catalog(ctx context.Context, productID string) (salescloud.Catalog, error) {
	if catalog, ok := s.cache.GetCatalog(productID); ok {
		return catalog, nil
	}
	catalog, err := s.api.BundleCatalog(ctx, productID)
	if err != nil {
		return salescloud.Catalog{}, err
	}
	s.cache.SetCatalog(productID, catalog)
	return catalog, nil
}

// RelationshipType resolves a relationship type label to its id, served
// from cache when warm.
func (s *Service) RelationshipType(ctx context.Context, label string) (string, error) {
	if id, ok := s.cache.GetRelationshipType(label); ok {
		return id, nil
	}
	id, err := s.api.RelationshipTypeID(ctx, label)
	if err != nil {
		return "", err
	}
	s.cache.SetRelationshipType(label, id)
	return id, nil
}

// Resolve hydrates product ids, price book entries and unit prices on
// every period from the bundle catalog. Rows the catalog cannot satisfy
// are left unresolved; the graph builder skips them with a warning.
func (s *Service) Resolve(ctx context.Context, periods []quotedomain.Period, bundleProductID string) ([]quotedomain.Period, error) {
	catalog, err := s.Catalog(ctx, bundleProductID)
	if err != nil {
		return nil, err
	}

	resolved := make([]quotedomain.Period, len(periods))
	for i, period := range periods {
		resolved[i] = s.resolvePeriod(period, catalog)
	}
	return resolved, nil
}

// resolvePeriod fills the period's primary product from the bundle's
// platform component. The bundle product itself never becomes the
// primary; it is the parent the platform line hangs from.
func (s *Service) resolvePeriod(period quotedomain.Period, catalog salescloud.Catalog) quotedomain.Period {
	if component, ok := platformComponent(catalog); ok {
		if strings.TrimSpace(period.ProductID) == "" {
			period.ProductID = component.ProductID
		}
		if price, ok := component.DefaultPrice(); ok {
			if period.PriceBookEntryID == "" {
				period.PriceBookEntryID = price.PriceBookEntryID
			}
			if period.UnitPrice.IsZero() {
				period.UnitPrice = decimal.NewFromFloat(price.UnitPrice)
			}
			if period.Currency == "" {
				period.Currency = price.CurrencyCode
			}
		}
	}

	for j, tier := range period.Tiers {
		if tier.Resolved() {
			continue
		}
		component, ok := tierComponent(catalog, tier.Kind)
		if !ok {
			s.log.Warn("tier has no catalog component",
				zap.Int("period", period.Index),
				zap.String("tier", string(tier.Kind)),
			)
			continue
		}
		period.Tiers[j].ProductID = component.ProductID
		if price, ok := component.DefaultPrice(); ok {
			period.Tiers[j].PriceBookEntryID = price.PriceBookEntryID
			if tier.UnitPrice.IsZero() {
				period.Tiers[j].UnitPrice = decimal.NewFromFloat(price.UnitPrice)
			}
		}
	}
	return period
}

func platformComponent(catalog salescloud.Catalog) (salescloud.Component, bool) {
	for _, group := range catalog.Groups {
		if normalizeGroup(group.Name) == groupPlatform && len(group.Components) > 0 {
			return group.Components[0], true
		}
	}
	return salescloud.Component{}, false
}

func tierComponent(catalog salescloud.Catalog, kind quotedomain.TierKind) (salescloud.Component, bool) {
	if kind == quotedomain.TierNonProd {
		for _, group := range catalog.Groups {
			if normalizeGroup(group.Name) == groupNonProd && len(group.Components) > 0 {
				return group.Components[0], true
			}
		}
		return salescloud.Component{}, false
	}

	needle := strings.ToLower(string(kind))
	for _, group := range catalog.Groups {
		if normalizeGroup(group.Name) != groupUsers {
			continue
		}
		for _, component := range group.Components {
			if strings.Contains(strings.ToLower(component.ProductName), needle) {
				return component, true
			}
		}
	}
	return salescloud.Component{}, false
}

func normalizeGroup(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var Module = fx.Module("pricing.service",
	fx.Provide(
		cache.NewCatalogResolverCache,
		NewService,
	),
)
