package models

import "time"

// Marketplace enumerates the supported upstream marketplaces.
type Marketplace string

const (
	MarketplaceTrendyol    Marketplace = "trendyol"
	MarketplaceHepsiburada Marketplace = "hepsiburada"
)

// Valid reports whether m is a known marketplace.
func (m Marketplace) Valid() bool {
	switch m {
	case MarketplaceTrendyol, MarketplaceHepsiburada:
		return true
	}
	return false
}

// ConnectionStatus enumerates marketplace connection states.
type ConnectionStatus string

const (
	ConnectionActive  ConnectionStatus = "active"
	ConnectionPassive ConnectionStatus = "passive"
)

// MarketplaceConnection holds per-tenant credentials for one marketplace.
// APIKey and APISecret are stored encrypted (ivHex:cipherHex) and must be
// decrypted before use. The sync engine treats rows as read-only.
type MarketplaceConnection struct {
	ID          int              `db:"id" json:"id"`
	TenantID    int              `db:"tenant_id" json:"tenantId"`
	CustomerID  int              `db:"customer_id" json:"customerId"`
	Marketplace Marketplace      `db:"marketplace" json:"marketplace"`
	StoreName   string           `db:"store_name" json:"storeName"`
	APIKey      string           `db:"api_key" json:"-"`
	APISecret   string           `db:"api_secret" json:"-"`
	SellerID    string           `db:"seller_id" json:"sellerId"`
	Status      ConnectionStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"-"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
}

// Credentials is a decrypted credential pair handed to marketplace clients.
// It never touches persistent storage.
type Credentials struct {
	APIKey    string
	APISecret string
	SellerID  string
}
