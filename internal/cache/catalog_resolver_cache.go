package cache

import (
	"strings"
	"time"

	"github.com/smallbiznis/rampline/internal/salescloud"
)

const (
	defaultCatalogTTL          = 10 * time.Minute
	defaultRelationshipTypeTTL = 30 * time.Minute
)

// CatalogResolverCache stores hot-path backend lookups so a save fetches
// each catalog and relationship type at most once.
type CatalogResolverCache interface {
	GetCatalog(productID string) (salescloud.Catalog, bool)
	SetCatalog(productID string, catalog salescloud.Catalog)
	GetRelationshipType(label string) (string, bool)
	SetRelationshipType(label, id string)
}

type catalogResolverCache struct {
	catalogs          Cache[string, salescloud.Catalog]
	relationshipTypes Cache[string, string]
	catalogTTL        time.Duration
	relTypeTTL        time.Duration
}

// NewCatalogResolverCache returns an in-memory cache tuned for quote saves.
func NewCatalogResolverCache() CatalogResolverCache {
	return &catalogResolverCache{
		catalogs:          NewTTLCache[string, salescloud.Catalog](),
		relationshipTypes: NewTTLCache[string, string](),
		catalogTTL:        defaultCatalogTTL,
		relTypeTTL:        defaultRelationshipTypeTTL,
	}
}

func (c *catalogResolverCache) GetCatalog(productID string) (salescloud.Catalog, bool) {
	return c.catalogs.Get(cacheKey(productID))
}

func (c *catalogResolverCache) SetCatalog(productID string, catalog salescloud.Catalog) {
	if len(catalog.Groups) == 0 {
		return
	}
	c.catalogs.Set(cacheKey(productID), catalog, c.catalogTTL)
}

func (c *catalogResolverCache) GetRelationshipType(label string) (string, bool) {
	return c.relationshipTypes.Get(cacheKey(label))
}

func (c *catalogResolverCache) SetRelationshipType(label, id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	c.relationshipTypes.Set(cacheKey(label), id, c.relTypeTTL)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
