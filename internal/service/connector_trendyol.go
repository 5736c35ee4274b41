package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/pkg/httpx"
	"github.com/sellergate/sellergate_api/pkg/trendyol"
)

// TrendyolConnector builds Trendyol clients and maps raw Trendyol
// products into the normalized local shape.
type TrendyolConnector struct {
	fetcher   *httpx.Fetcher
	proxyPool []string
	demoMode  bool
}

// NewTrendyolConnector constructs a TrendyolConnector.
func NewTrendyolConnector(fetcher *httpx.Fetcher, proxyPool []string, demoMode bool) *TrendyolConnector {
	return &TrendyolConnector{fetcher: fetcher, proxyPool: proxyPool, demoMode: demoMode}
}

// Marketplace identifies this connector.
func (c *TrendyolConnector) Marketplace() models.Marketplace {
	return models.MarketplaceTrendyol
}

// NewClient builds a client bound to one connection's credentials. In
// demo mode the fixture client is returned instead; real credentials
// never reach it because demo mode is rejected in production config.
func (c *TrendyolConnector) NewClient(creds models.Credentials) MarketplaceClient {
	if c.demoMode {
		return newDemoClient(models.MarketplaceTrendyol)
	}
	return &trendyolClient{
		api: trendyol.NewClient(trendyol.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			SellerID:  creds.SellerID,
			ProxyPool: c.proxyPool,
		}, c.fetcher),
	}
}

// Normalize maps a raw Trendyol product to the local model. Archived
// products become inactive, unapproved ones draft.
func (c *TrendyolConnector) Normalize(tenantID, customerID int, item RawItem) (*models.Product, error) {
	raw, ok := item.Data.(trendyol.Product)
	if !ok {
		return nil, fmt.Errorf("unexpected trendyol payload type %T", item.Data)
	}
	if raw.Barcode == "" && raw.StockCode == "" {
		return nil, fmt.Errorf("product %q has neither barcode nor stock code", item.ExternalID)
	}

	status := models.ProductActive
	switch {
	case raw.Archived:
		status = models.ProductInactive
	case !raw.Approved:
		status = models.ProductDraft
	}

	stock := raw.Quantity
	if stock < 0 {
		stock = 0
	}

	images := make([]string, 0, len(raw.Images))
	for _, img := range raw.Images {
		if img.URL != "" {
			images = append(images, img.URL)
		}
	}

	return &models.Product{
		TenantID:    tenantID,
		CustomerID:  customerID,
		ExternalID:  item.ExternalID,
		Name:        raw.Title,
		Description: raw.Description,
		Price:       raw.SalePrice,
		Stock:       stock,
		Source:      models.MarketplaceTrendyol,
		Barcode:     raw.Barcode,
		SellerSKU:   raw.StockCode,
		Images:      images,
		Status:      status,
	}, nil
}

// trendyolClient adapts the typed Trendyol client to the uniform
// MarketplaceClient contract.
type trendyolClient struct {
	api *trendyol.Client
}

func (c *trendyolClient) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	res, err := c.api.ListProducts(ctx, page, size)
	if err != nil {
		return nil, err
	}

	items := make([]RawItem, 0, len(res.Content))
	for _, p := range res.Content {
		items = append(items, RawItem{ExternalID: externalID(p), Data: p})
	}
	return &ProductPage{Items: items, HasMore: res.HasMore()}, nil
}

func (c *trendyolClient) GetProduct(ctx context.Context, externalID string) (*RawItem, error) {
	p, err := c.api.GetProduct(ctx, externalID)
	if err != nil || p == nil {
		return nil, err
	}
	return &RawItem{ExternalID: externalID, Data: *p}, nil
}

func (c *trendyolClient) ListCategories(ctx context.Context) (json.RawMessage, error) {
	return c.api.ListCategories(ctx)
}

func (c *trendyolClient) ListCategoryAttributes(ctx context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error) {
	return c.api.ListCategoryAttributes(ctx, categoryID)
}

func (c *trendyolClient) TestConnection(ctx context.Context) *ConnectionCheck {
	if err := c.api.Ping(ctx); err != nil {
		return &ConnectionCheck{Success: false, Message: err.Error()}
	}
	return &ConnectionCheck{Success: true, Message: "trendyol connection verified"}
}

func externalID(p trendyol.Product) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Barcode
}
