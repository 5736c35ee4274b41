package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/pkg/hepsiburada"
	"github.com/sellergate/sellergate_api/pkg/httpx"
)

// HepsiburadaConnector builds Hepsiburada clients and maps raw listings
// into the normalized local shape.
type HepsiburadaConnector struct {
	fetcher   *httpx.Fetcher
	proxyPool []string
	demoMode  bool
}

// NewHepsiburadaConnector constructs a HepsiburadaConnector.
func NewHepsiburadaConnector(fetcher *httpx.Fetcher, proxyPool []string, demoMode bool) *HepsiburadaConnector {
	return &HepsiburadaConnector{fetcher: fetcher, proxyPool: proxyPool, demoMode: demoMode}
}

// Marketplace identifies this connector.
func (c *HepsiburadaConnector) Marketplace() models.Marketplace {
	return models.MarketplaceHepsiburada
}

// NewClient builds a client bound to one connection's credentials; the
// fixture client is substituted only in demo mode.
func (c *HepsiburadaConnector) NewClient(creds models.Credentials) MarketplaceClient {
	if c.demoMode {
		return newDemoClient(models.MarketplaceHepsiburada)
	}
	return &hepsiburadaClient{
		api: hepsiburada.NewClient(hepsiburada.Config{
			MerchantID: creds.SellerID,
			APIKey:     creds.APIKey,
			APISecret:  creds.APISecret,
			ProxyPool:  c.proxyPool,
		}, c.fetcher),
	}
}

// Normalize maps a raw Hepsiburada listing to the local model.
func (c *HepsiburadaConnector) Normalize(tenantID, customerID int, item RawItem) (*models.Product, error) {
	raw, ok := item.Data.(hepsiburada.Listing)
	if !ok {
		return nil, fmt.Errorf("unexpected hepsiburada payload type %T", item.Data)
	}
	if raw.Barcode == "" && raw.MerchantSKU == "" {
		return nil, fmt.Errorf("listing %q has neither barcode nor merchant sku", item.ExternalID)
	}

	status := models.ProductActive
	if !raw.IsSalable {
		status = models.ProductInactive
	}

	stock := raw.AvailableStock
	if stock < 0 {
		stock = 0
	}

	return &models.Product{
		TenantID:    tenantID,
		CustomerID:  customerID,
		ExternalID:  item.ExternalID,
		Name:        raw.ProductName,
		Description: raw.Description,
		Price:       raw.Price,
		Stock:       stock,
		Source:      models.MarketplaceHepsiburada,
		Barcode:     raw.Barcode,
		SellerSKU:   raw.MerchantSKU,
		Images:      raw.Images,
		Status:      status,
	}, nil
}

// hepsiburadaClient adapts the typed Hepsiburada client to the uniform
// MarketplaceClient contract. Hepsiburada pages by offset; the adapter
// translates page/size to offset/limit.
type hepsiburadaClient struct {
	api *hepsiburada.Client
}

func (c *hepsiburadaClient) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	res, err := c.api.ListListings(ctx, page*size, size)
	if err != nil {
		return nil, err
	}

	items := make([]RawItem, 0, len(res.Listings))
	for _, l := range res.Listings {
		items = append(items, RawItem{ExternalID: listingID(l), Data: l})
	}
	return &ProductPage{Items: items, HasMore: res.HasMore()}, nil
}

func (c *hepsiburadaClient) GetProduct(ctx context.Context, externalID string) (*RawItem, error) {
	l, err := c.api.GetListing(ctx, externalID)
	if err != nil || l == nil {
		return nil, err
	}
	return &RawItem{ExternalID: externalID, Data: *l}, nil
}

func (c *hepsiburadaClient) ListCategories(ctx context.Context) (json.RawMessage, error) {
	return c.api.ListCategories(ctx)
}

func (c *hepsiburadaClient) ListCategoryAttributes(ctx context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error) {
	return c.api.ListCategoryAttributes(ctx, categoryID)
}

func (c *hepsiburadaClient) TestConnection(ctx context.Context) *ConnectionCheck {
	if err := c.api.Ping(ctx); err != nil {
		return &ConnectionCheck{Success: false, Message: err.Error()}
	}
	return &ConnectionCheck{Success: true, Message: "hepsiburada connection verified"}
}

func listingID(l hepsiburada.Listing) string {
	if l.HBSKU != "" {
		return l.HBSKU
	}
	return l.MerchantSKU
}
