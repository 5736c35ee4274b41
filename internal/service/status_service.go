package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sellergate/sellergate_api/internal/cache"
	"github.com/sellergate/sellergate_api/internal/models"
)

const statusSnapshotTTL = 30 * time.Second

// ConnectionChecker reports whether an active connection exists.
type ConnectionChecker interface {
	HasActive(tenantID, customerID int, marketplace models.Marketplace) (bool, error)
}

// ProductCounter counts synced products for a connection.
type ProductCounter interface {
	Count(tenantID, customerID int, marketplace models.Marketplace) (int, error)
}

// RunHistory exposes the last completed run for a connection.
type RunHistory interface {
	GetLastCompleted(tenantID, customerID int, platform models.Marketplace) (*models.SyncLog, error)
}

// LastSync summarizes the most recent completed run for a connection.
type LastSync struct {
	RunID       string            `json:"runId"`
	Status      models.SyncStatus `json:"status"`
	Imported    int               `json:"imported"`
	Updated     int               `json:"updated"`
	Errors      int               `json:"errors"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// SyncStatusReport is the per-marketplace status surface.
type SyncStatusReport struct {
	Marketplace   models.Marketplace `json:"marketplace"`
	HasConnection bool               `json:"hasConnection"`
	ProductCount  int                `json:"productCount"`
	LastSync      *LastSync          `json:"lastSync,omitempty"`
}

// StatusService answers "is this marketplace connected and when did it
// last sync". Reports are snapshotted in redis for a short TTL so a
// polling dashboard does not hammer postgres.
type StatusService struct {
	connections ConnectionChecker
	products    ProductCounter
	logs        RunHistory
	redis       *cache.RedisClient
}

// NewStatusService constructs a StatusService. redis may be nil, in which
// case every report is assembled fresh.
func NewStatusService(connections ConnectionChecker, products ProductCounter, logs RunHistory, redis *cache.RedisClient) *StatusService {
	return &StatusService{connections: connections, products: products, logs: logs, redis: redis}
}

// GetStatus returns the status report for one (tenant, customer,
// marketplace), serving a cached snapshot when one is fresh.
func (s *StatusService) GetStatus(ctx context.Context, tenantID, customerID int, marketplace models.Marketplace) (*SyncStatusReport, error) {
	key := statusKey(tenantID, customerID, marketplace)

	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, key); err == nil && raw != "" {
			var report SyncStatusReport
			if err := json.Unmarshal([]byte(raw), &report); err == nil {
				return &report, nil
			}
		}
	}

	report, err := s.build(tenantID, customerID, marketplace)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if raw, err := json.Marshal(report); err == nil {
			if err := s.redis.Set(ctx, key, string(raw), statusSnapshotTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to snapshot sync status")
			}
		}
	}
	return report, nil
}

// Invalidate drops the cached snapshot, called after a run completes so
// the next poll reflects it immediately.
func (s *StatusService) Invalidate(ctx context.Context, tenantID, customerID int, marketplace models.Marketplace) {
	if s.redis == nil {
		return
	}
	key := statusKey(tenantID, customerID, marketplace)
	if err := s.redis.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to invalidate sync status snapshot")
	}
}

func (s *StatusService) build(tenantID, customerID int, marketplace models.Marketplace) (*SyncStatusReport, error) {
	hasConn, err := s.connections.HasActive(tenantID, customerID, marketplace)
	if err != nil {
		return nil, fmt.Errorf("connection lookup failed: %w", err)
	}

	count, err := s.products.Count(tenantID, customerID, marketplace)
	if err != nil {
		return nil, fmt.Errorf("product count failed: %w", err)
	}

	report := &SyncStatusReport{
		Marketplace:   marketplace,
		HasConnection: hasConn,
		ProductCount:  count,
	}

	last, err := s.logs.GetLastCompleted(tenantID, customerID, marketplace)
	if err != nil {
		return nil, fmt.Errorf("last run lookup failed: %w", err)
	}
	if last != nil {
		counters := last.Counters()
		report.LastSync = &LastSync{
			RunID:       last.RunID,
			Status:      last.Status,
			Imported:    counters.Imported,
			Updated:     counters.Updated,
			Errors:      counters.Errors,
			CompletedAt: last.CompletedAt,
		}
	}
	return report, nil
}

func statusKey(tenantID, customerID int, marketplace models.Marketplace) string {
	return fmt.Sprintf("sync-status:%d:%d:%s", tenantID, customerID, marketplace)
}
