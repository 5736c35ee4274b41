package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// ConnectionLister enumerates the connections the worker should sweep.
type ConnectionLister interface {
	ListActive(marketplace models.Marketplace) ([]models.MarketplaceConnection, error)
}

// SyncWorker periodically pulls the catalog of every active marketplace
// connection.
type SyncWorker struct {
	connections ConnectionLister
	syncSvc     *service.SyncService
	statusSvc   *service.StatusService
	interval    time.Duration
}

// NewSyncWorker constructs a SyncWorker. statusSvc may be nil.
func NewSyncWorker(connections ConnectionLister, syncSvc *service.SyncService, statusSvc *service.StatusService, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		connections: connections,
		syncSvc:     syncSvc,
		statusSvc:   statusSvc,
		interval:    interval,
	}
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *SyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting marketplace sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Marketplace sync worker stopped")
			return
		}
	}
}

func (w *SyncWorker) run(ctx context.Context) {
	log.Info().Msg("Starting marketplace catalog sweep...")

	conns, err := w.connections.ListActive("")
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active connections")
		return
	}

	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		w.syncConnection(ctx, conn)
	}

	log.Info().Int("connections", len(conns)).Msg("Marketplace catalog sweep completed")
}

func (w *SyncWorker) syncConnection(ctx context.Context, conn models.MarketplaceConnection) {
	start := time.Now()

	result, err := w.syncSvc.SyncProducts(ctx, conn.TenantID, conn.CustomerID, conn.Marketplace)
	if err != nil {
		// Another run for this connection is fine; everything else is not.
		if errors.Is(err, utils.ErrSyncAlreadyRunning) {
			log.Debug().
				Str("marketplace", string(conn.Marketplace)).
				Int("customer", conn.CustomerID).
				Msg("Sync already in progress, skipping")
			return
		}
		log.Error().
			Err(err).
			Str("marketplace", string(conn.Marketplace)).
			Int("customer", conn.CustomerID).
			Msg("Scheduled sync failed")
		return
	}

	if w.statusSvc != nil {
		w.statusSvc.Invalidate(ctx, conn.TenantID, conn.CustomerID, conn.Marketplace)
	}

	log.Info().
		Str("marketplace", string(conn.Marketplace)).
		Int("customer", conn.CustomerID).
		Str("status", string(result.Status)).
		Int("imported", result.Counters.Imported).
		Int("updated", result.Counters.Updated).
		Int("errors", result.Counters.Errors).
		Dur("duration", time.Since(start)).
		Msg("Scheduled sync completed")
}
