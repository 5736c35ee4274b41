package models

import (
	"time"

	"github.com/lib/pq"
)

// ProductStatus enumerates normalized product states.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductDraft    ProductStatus = "draft"
)

// Product is the normalized local shape every marketplace product is
// mapped into. Upsert identity is (tenant, customer, barcode) when a
// barcode is present, otherwise (tenant, customer, seller_sku).
type Product struct {
	ID          int            `db:"id" json:"id"`
	TenantID    int            `db:"tenant_id" json:"tenantId"`
	CustomerID  int            `db:"customer_id" json:"customerId"`
	ExternalID  string         `db:"external_id" json:"externalId"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Price       float64        `db:"price" json:"price"`
	Stock       int            `db:"stock" json:"stock"`
	Source      Marketplace    `db:"source_marketplace" json:"sourceMarketplace"`
	Barcode     string         `db:"barcode" json:"barcode,omitempty"`
	SellerSKU   string         `db:"seller_sku" json:"sellerSku,omitempty"`
	Images      pq.StringArray `db:"images" json:"images"`
	Status      ProductStatus  `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"-"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// IdentityKey returns the dedupe key used for upserts: barcode wins over
// seller SKU. Empty when the record carries neither.
func (p *Product) IdentityKey() string {
	if p.Barcode != "" {
		return "barcode:" + p.Barcode
	}
	if p.SellerSKU != "" {
		return "sku:" + p.SellerSKU
	}
	return ""
}
