package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/utils"
	"github.com/sellergate/sellergate_api/pkg/httpx"
)

// RawItem is one marketplace product record before normalization. Data
// holds the client's typed item; the owning connector knows how to read it.
type RawItem struct {
	ExternalID string
	Data       any
}

// ProductPage is one page of raw products. An empty Items with
// HasMore=false is the valid terminal signal of pagination. MockData
// marks fixture responses from demo-mode clients; it is never set by a
// real client.
type ProductPage struct {
	Items    []RawItem
	HasMore  bool
	MockData bool
}

// ConnectionCheck is the outcome of a credential test.
type ConnectionCheck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MarketplaceClient is the uniform contract every marketplace
// implementation exposes, regardless of upstream shape. Category and
// attribute bodies are returned raw because their shapes vary by gateway
// version; normalization happens in the resolution services.
type MarketplaceClient interface {
	ListProducts(ctx context.Context, page, size int) (*ProductPage, error)
	GetProduct(ctx context.Context, externalID string) (*RawItem, error)
	ListCategories(ctx context.Context) (json.RawMessage, error)
	ListCategoryAttributes(ctx context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error)
	TestConnection(ctx context.Context) *ConnectionCheck
}

// Connector is the per-marketplace capability set injected into the
// generic sync runner: a client factory and a raw-to-normalized mapping.
type Connector interface {
	Marketplace() models.Marketplace
	NewClient(creds models.Credentials) MarketplaceClient
	Normalize(tenantID, customerID int, item RawItem) (*models.Product, error)
}

// ConnectorRegistry resolves connectors by marketplace.
type ConnectorRegistry struct {
	mu         sync.RWMutex
	connectors map[models.Marketplace]Connector
}

// NewConnectorRegistry constructs an empty registry.
func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{connectors: make(map[models.Marketplace]Connector)}
}

// Register adds a connector. Later registrations for the same marketplace
// replace earlier ones.
func (r *ConnectorRegistry) Register(c Connector) {
	r.mu.Lock()
	r.connectors[c.Marketplace()] = c
	r.mu.Unlock()
}

// Get resolves a connector or fails with ErrInvalidMarketplace.
func (r *ConnectorRegistry) Get(marketplace models.Marketplace) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[marketplace]
	if !ok {
		return nil, fmt.Errorf("%w: %s", utils.ErrInvalidMarketplace, marketplace)
	}
	return c, nil
}

// Marketplaces lists the registered marketplace names.
func (r *ConnectorRegistry) Marketplaces() []models.Marketplace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Marketplace, 0, len(r.connectors))
	for m := range r.connectors {
		out = append(out, m)
	}
	return out
}
