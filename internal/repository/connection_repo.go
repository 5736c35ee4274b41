package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sellergate/sellergate_api/internal/models"
)

// ConnectionRepository handles data access for marketplace connections.
// Rows are written by the connection API; the sync engine only reads them.
type ConnectionRepository struct {
	db *sqlx.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *sqlx.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// GetActive returns the active connection for one (tenant, customer,
// marketplace) triple, or nil when none is configured.
func (r *ConnectionRepository) GetActive(tenantID, customerID int, marketplace models.Marketplace) (*models.MarketplaceConnection, error) {
	const q = `
        SELECT * FROM marketplace_connections
        WHERE tenant_id = $1 AND customer_id = $2 AND marketplace = $3 AND status = 'active'
        LIMIT 1`

	var conn models.MarketplaceConnection
	if err := r.db.Get(&conn, q, tenantID, customerID, marketplace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

// ListActive returns every active connection, optionally filtered by
// marketplace when it is non-empty. Used by the periodic sync worker.
func (r *ConnectionRepository) ListActive(marketplace models.Marketplace) ([]models.MarketplaceConnection, error) {
	const q = `
        SELECT * FROM marketplace_connections
        WHERE status = 'active' AND ($1 = '' OR marketplace = $1)
        ORDER BY tenant_id, customer_id`

	var conns []models.MarketplaceConnection
	if err := r.db.Select(&conns, q, string(marketplace)); err != nil {
		return nil, err
	}
	return conns, nil
}

// HasActive reports whether an active connection exists for the triple.
func (r *ConnectionRepository) HasActive(tenantID, customerID int, marketplace models.Marketplace) (bool, error) {
	const q = `
        SELECT COUNT(1) FROM marketplace_connections
        WHERE tenant_id = $1 AND customer_id = $2 AND marketplace = $3 AND status = 'active'`

	var n int
	if err := r.db.Get(&n, q, tenantID, customerID, marketplace); err != nil {
		return false, err
	}
	return n > 0, nil
}
