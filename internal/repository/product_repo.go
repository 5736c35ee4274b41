package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sellergate/sellergate_api/internal/models"
)

// ProductRepository handles data access for normalized products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByIdentity resolves a stored product by the upsert identity rule:
// barcode first, seller SKU second, both scoped to (tenant, customer).
// Returns nil when neither key matches.
func (r *ProductRepository) FindByIdentity(tenantID, customerID int, barcode, sellerSKU string) (*models.Product, error) {
	if barcode != "" {
		p, err := r.findOne(`
            SELECT * FROM products
            WHERE tenant_id = $1 AND customer_id = $2 AND barcode = $3
            LIMIT 1`, tenantID, customerID, barcode)
		if err != nil || p != nil {
			return p, err
		}
	}
	if sellerSKU != "" {
		return r.findOne(`
            SELECT * FROM products
            WHERE tenant_id = $1 AND customer_id = $2 AND seller_sku = $3
            LIMIT 1`, tenantID, customerID, sellerSKU)
	}
	return nil, nil
}

// Create inserts a product and populates its ID.
func (r *ProductRepository) Create(p *models.Product) error {
	const q = `
        INSERT INTO products (
            tenant_id, customer_id, external_id, name, description,
            price, stock, source_marketplace, barcode, seller_sku, images, status
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowx(q,
		p.TenantID, p.CustomerID, p.ExternalID, p.Name, p.Description,
		p.Price, p.Stock, p.Source, p.Barcode, p.SellerSKU, p.Images, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update rewrites the mutable fields of an existing product.
func (r *ProductRepository) Update(p *models.Product) error {
	const q = `
        UPDATE products SET
            external_id = $1, name = $2, description = $3, price = $4,
            stock = $5, source_marketplace = $6, barcode = $7,
            seller_sku = $8, images = $9, status = $10, updated_at = NOW()
        WHERE id = $11`

	res, err := r.db.Exec(q,
		p.ExternalID, p.Name, p.Description, p.Price,
		p.Stock, p.Source, p.Barcode, p.SellerSKU, p.Images, p.Status, p.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of products for (tenant, customer), optionally
// restricted to one source marketplace.
func (r *ProductRepository) Count(tenantID, customerID int, marketplace models.Marketplace) (int, error) {
	const q = `
        SELECT COUNT(1) FROM products
        WHERE tenant_id = $1 AND customer_id = $2
          AND ($3 = '' OR source_marketplace = $3)`

	var n int
	if err := r.db.Get(&n, q, tenantID, customerID, string(marketplace)); err != nil {
		return 0, err
	}
	return n, nil
}

// List returns a page of products for (tenant, customer) with total count.
func (r *ProductRepository) List(tenantID, customerID int, marketplace models.Marketplace, page, limit int) ([]models.Product, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	total, err := r.Count(tenantID, customerID, marketplace)
	if err != nil {
		return nil, 0, err
	}

	const q = `
        SELECT * FROM products
        WHERE tenant_id = $1 AND customer_id = $2
          AND ($3 = '' OR source_marketplace = $3)
        ORDER BY updated_at DESC
        LIMIT $4 OFFSET $5`

	var products []models.Product
	if err := r.db.Select(&products, q, tenantID, customerID, string(marketplace), limit, (page-1)*limit); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepository) findOne(q string, args ...interface{}) (*models.Product, error) {
	var p models.Product
	if err := r.db.Get(&p, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
