package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sellergate/sellergate_api/internal/models"
)

// SyncLogRepository handles data access for sync run audit rows.
type SyncLogRepository struct {
	db *sqlx.DB
}

// NewSyncLogRepository creates a new SyncLogRepository.
func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create inserts a pending run row and populates its ID.
func (r *SyncLogRepository) Create(l *models.SyncLog) error {
	const q = `
        INSERT INTO sync_logs (run_id, tenant_id, customer_id, operation, platform, direction, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`

	return r.db.QueryRowx(q,
		l.RunID, l.TenantID, l.CustomerID, l.Operation, l.Platform, l.Direction, l.Status,
	).Scan(&l.ID, &l.CreatedAt)
}

// Complete records the single terminal mutation of a run: status, final
// counters, and an optional failure message. Pending rows only; a second
// completion attempt affects zero rows and returns sql.ErrNoRows.
func (r *SyncLogRepository) Complete(id int, status models.SyncStatus, counters models.SyncCounters, message string) error {
	data, err := json.Marshal(counters)
	if err != nil {
		return err
	}

	const q = `
        UPDATE sync_logs
        SET status = $1, data = $2, message = $3, completed_at = NOW()
        WHERE id = $4 AND status = 'pending'`

	res, err := r.db.Exec(q, status, data, message, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetLastCompleted returns the most recent terminal run for one
// (tenant, customer, platform) triple, or nil when none exists.
func (r *SyncLogRepository) GetLastCompleted(tenantID, customerID int, platform models.Marketplace) (*models.SyncLog, error) {
	const q = `
        SELECT * FROM sync_logs
        WHERE tenant_id = $1 AND customer_id = $2 AND platform = $3 AND status != 'pending'
        ORDER BY created_at DESC
        LIMIT 1`

	var l models.SyncLog
	if err := r.db.Get(&l, q, tenantID, customerID, platform); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// List returns a page of runs for (tenant, customer), newest first, with
// total count.
func (r *SyncLogRepository) List(tenantID, customerID int, platform models.Marketplace, page, limit int) ([]models.SyncLog, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	const countQ = `
        SELECT COUNT(1) FROM sync_logs
        WHERE tenant_id = $1 AND customer_id = $2 AND ($3 = '' OR platform = $3)`

	var total int
	if err := r.db.Get(&total, countQ, tenantID, customerID, string(platform)); err != nil {
		return nil, 0, err
	}

	const q = `
        SELECT * FROM sync_logs
        WHERE tenant_id = $1 AND customer_id = $2 AND ($3 = '' OR platform = $3)
        ORDER BY created_at DESC
        LIMIT $4 OFFSET $5`

	var logs []models.SyncLog
	if err := r.db.Select(&logs, q, tenantID, customerID, string(platform), limit, (page-1)*limit); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
