package hepsiburada

// Listing is a raw Hepsiburada merchant listing.
type Listing struct {
	HBSKU          string   `json:"hbSku"`
	MerchantSKU    string   `json:"merchantSku"`
	Barcode        string   `json:"barcode"`
	ProductName    string   `json:"productName"`
	Description    string   `json:"description"`
	Price          float64  `json:"price"`
	AvailableStock int      `json:"availableStock"`
	IsSalable      bool     `json:"isSalable"`
	CategoryID     int      `json:"categoryId"`
	Images         []string `json:"images"`
}

// ListingPage is the paged envelope of the listings endpoint.
type ListingPage struct {
	Listings   []Listing `json:"listings"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
	TotalCount int       `json:"totalCount"`
}

// HasMore reports whether another page exists after this one.
func (p *ListingPage) HasMore() bool {
	return len(p.Listings) > 0 && p.Offset+len(p.Listings) < p.TotalCount
}
