package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/pkg/hepsiburada"
	"github.com/sellergate/sellergate_api/pkg/httpx"
	"github.com/sellergate/sellergate_api/pkg/trendyol"
)

// demoClient serves a fixed illustrative dataset for demo environments.
// Every product page it returns is marked MockData so nothing downstream
// can mistake fixtures for marketplace data. Connectors only construct it
// when demo mode is enabled, and config rejects demo mode in production.
type demoClient struct {
	marketplace models.Marketplace
}

func newDemoClient(marketplace models.Marketplace) *demoClient {
	return &demoClient{marketplace: marketplace}
}

func (c *demoClient) ListProducts(_ context.Context, page, size int) (*ProductPage, error) {
	items := c.items()
	start := page * size
	if start >= len(items) {
		return &ProductPage{MockData: true}, nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return &ProductPage{
		Items:    items[start:end],
		HasMore:  end < len(items),
		MockData: true,
	}, nil
}

func (c *demoClient) GetProduct(_ context.Context, externalID string) (*RawItem, error) {
	for _, item := range c.items() {
		if item.ExternalID == externalID {
			return &item, nil
		}
	}
	return nil, nil
}

func (c *demoClient) ListCategories(_ context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{
        "categories": [
            {"id": 100, "name": "Electronics", "subCategories": [
                {"id": 110, "name": "Phones", "subCategories": [
                    {"id": 111, "name": "Smartphones", "subCategories": []},
                    {"id": 112, "name": "Accessories", "subCategories": []}
                ]},
                {"id": 120, "name": "Audio", "subCategories": []}
            ]},
            {"id": 200, "name": "Home", "subCategories": [
                {"id": 210, "name": "Kitchen", "subCategories": []}
            ]}
        ]
    }`), nil
}

func (c *demoClient) ListCategoryAttributes(_ context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error) {
	body := fmt.Sprintf(`{
        "categoryAttributes": [
            {"attribute": {"id": 1, "name": "Color"}, "required": true, "allowCustom": false,
             "varianter": true, "attributeValues": [{"id": 10, "name": "Black"}, {"id": 11, "name": "White"}]},
            {"attribute": {"id": 2, "name": "Material"}, "required": false, "allowCustom": true,
             "varianter": false, "attributeValues": []}
        ],
        "categoryId": %d
    }`, categoryID)
	attempts := []httpx.Attempt{{URL: "demo://fixtures/attributes", Egress: "direct", Status: 200}}
	return json.RawMessage(body), attempts, nil
}

func (c *demoClient) TestConnection(context.Context) *ConnectionCheck {
	return &ConnectionCheck{Success: true, Message: "demo mode: no upstream call performed"}
}

func (c *demoClient) items() []RawItem {
	if c.marketplace == models.MarketplaceHepsiburada {
		return []RawItem{
			{ExternalID: "HB-DEMO-1", Data: hepsiburada.Listing{
				HBSKU: "HB-DEMO-1", MerchantSKU: "DEMO-SKU-1", Barcode: "8690000000017",
				ProductName: "Demo Kettle", Price: 349.90, AvailableStock: 12, IsSalable: true, CategoryID: 210,
			}},
			{ExternalID: "HB-DEMO-2", Data: hepsiburada.Listing{
				HBSKU: "HB-DEMO-2", MerchantSKU: "DEMO-SKU-2",
				ProductName: "Demo Headphones", Price: 1299.00, AvailableStock: 3, IsSalable: true, CategoryID: 120,
			}},
		}
	}
	return []RawItem{
		{ExternalID: "TY-DEMO-1", Data: trendyol.Product{
			ID: "TY-DEMO-1", Barcode: "8690000000024", Title: "Demo Phone Case",
			SalePrice: 149.90, Quantity: 40, StockCode: "DEMO-CASE-1", Approved: true, CategoryID: 112,
		}},
		{ExternalID: "TY-DEMO-2", Data: trendyol.Product{
			ID: "TY-DEMO-2", Barcode: "8690000000031", Title: "Demo Speaker",
			SalePrice: 899.00, Quantity: 7, StockCode: "DEMO-SPK-1", Approved: true, CategoryID: 120,
		}},
	}
}
