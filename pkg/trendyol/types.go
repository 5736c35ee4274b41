package trendyol

// Image is one product image reference.
type Image struct {
	URL string `json:"url"`
}

// Product is a raw Trendyol product as returned by the products endpoint.
type Product struct {
	ID          string  `json:"id"`
	Barcode     string  `json:"barcode"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	CategoryID  int     `json:"pimCategoryId"`
	SalePrice   float64 `json:"salePrice"`
	ListPrice   float64 `json:"listPrice"`
	Quantity    int     `json:"quantity"`
	StockCode   string  `json:"stockCode"`
	Approved    bool    `json:"approved"`
	Archived    bool    `json:"archived"`
	OnSale      bool    `json:"onSale"`
	Images      []Image `json:"images"`
}

// ProductPage is the paged envelope of the products endpoint.
type ProductPage struct {
	Content       []Product `json:"content"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
}

// HasMore reports whether another page exists after this one.
func (p *ProductPage) HasMore() bool {
	return len(p.Content) > 0 && p.Page+1 < p.TotalPages
}
