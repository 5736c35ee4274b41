package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// maxRunMessages caps the per-record error messages stored on a run so a
// pathological catalog cannot bloat the audit row.
const maxRunMessages = 20

// ConnectionStore is the credential-store surface the runner consumes.
type ConnectionStore interface {
	GetActive(tenantID, customerID int, marketplace models.Marketplace) (*models.MarketplaceConnection, error)
}

// ProductStore is the persistence surface for normalized products.
type ProductStore interface {
	FindByIdentity(tenantID, customerID int, barcode, sellerSKU string) (*models.Product, error)
	Create(*models.Product) error
	Update(*models.Product) error
}

// RunLogStore records sync run lifecycles.
type RunLogStore interface {
	Create(*models.SyncLog) error
	Complete(id int, status models.SyncStatus, counters models.SyncCounters, message string) error
}

// Decryptor turns stored credential ciphertext into plaintext.
type Decryptor interface {
	Decrypt(stored string) (string, error)
}

// RunResult is the outcome of one sync run.
type RunResult struct {
	RunID    string              `json:"runId"`
	Status   models.SyncStatus   `json:"status"`
	Counters models.SyncCounters `json:"counters"`
	MockData bool                `json:"mockData,omitempty"`
}

// SyncService pulls a marketplace catalog page by page, normalizes each
// record through the connector, and upserts it idempotently. One generic
// runner serves every marketplace; the per-marketplace behavior lives in
// the injected Connector.
type SyncService struct {
	connections ConnectionStore
	products    ProductStore
	logs        RunLogStore
	cipher      Decryptor
	registry    *ConnectorRegistry
	pageSize    int

	mu      sync.Mutex
	running map[string]bool
}

// NewSyncService constructs a SyncService.
func NewSyncService(connections ConnectionStore, products ProductStore, logs RunLogStore, cipher Decryptor, registry *ConnectorRegistry, pageSize int) *SyncService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &SyncService{
		connections: connections,
		products:    products,
		logs:        logs,
		cipher:      cipher,
		registry:    registry,
		pageSize:    pageSize,
		running:     make(map[string]bool),
	}
}

// SyncProducts executes one run for (tenant, customer, marketplace).
//
// Lifecycle: resolve connection, decrypt credentials, create a pending
// run row, page through the catalog upserting records, then complete the
// row exactly once. Record-level failures are counted and logged without
// aborting the run; an engine-level failure completes the row as error
// and is returned. Terminal status policy: zero errors is success, a mix
// of errors and successes is partial, only failures is error.
func (s *SyncService) SyncProducts(ctx context.Context, tenantID, customerID int, marketplace models.Marketplace) (*RunResult, error) {
	connector, err := s.registry.Get(marketplace)
	if err != nil {
		return nil, err
	}

	if !s.acquire(tenantID, customerID, marketplace) {
		return nil, fmt.Errorf("%w: %s for customer %d", utils.ErrSyncAlreadyRunning, marketplace, customerID)
	}
	defer s.release(tenantID, customerID, marketplace)

	conn, err := s.connections.GetActive(tenantID, customerID, marketplace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s for customer %d", utils.ErrConnectionNotConfigured, marketplace, customerID)
	}

	creds, err := s.decryptCredentials(conn)
	if err != nil {
		return nil, err
	}

	runLog := &models.SyncLog{
		RunID:      uuid.New().String(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Operation:  models.OpProductSync,
		Platform:   marketplace,
		Direction:  models.DirectionInbound,
		Status:     models.SyncPending,
	}
	if err := s.logs.Create(runLog); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	log.Info().Str("run_id", runLog.RunID).Str("marketplace", string(marketplace)).
		Int("tenant", tenantID).Int("customer", customerID).Msg("sync run started")
	start := time.Now()

	client := connector.NewClient(creds)
	result, runErr := s.pullAll(ctx, client, connector, tenantID, customerID)
	result.RunID = runLog.RunID

	if runErr != nil {
		result.Status = models.SyncError
		result.Counters.Messages = appendMessage(result.Counters.Messages, runErr.Error())
		if err := s.logs.Complete(runLog.ID, models.SyncError, result.Counters, runErr.Error()); err != nil {
			log.Error().Err(err).Str("run_id", runLog.RunID).Msg("failed to complete sync run")
		}
		return result, runErr
	}

	result.Status = terminalStatus(result.Counters)
	if err := s.logs.Complete(runLog.ID, result.Status, result.Counters, ""); err != nil {
		log.Error().Err(err).Str("run_id", runLog.RunID).Msg("failed to complete sync run")
	}

	log.Info().Str("run_id", runLog.RunID).Str("status", string(result.Status)).
		Int("imported", result.Counters.Imported).Int("updated", result.Counters.Updated).
		Int("errors", result.Counters.Errors).Dur("duration", time.Since(start)).
		Msg("sync run finished")
	return result, nil
}

// pullAll pages through the catalog in increasing page order until an
// empty page, upserting record by record. Context cancellation is honored
// between records and before each page fetch.
func (s *SyncService) pullAll(ctx context.Context, client MarketplaceClient, connector Connector, tenantID, customerID int) (*RunResult, error) {
	result := &RunResult{}

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := client.ListProducts(ctx, page, s.pageSize)
		if err != nil {
			return result, fmt.Errorf("page %d fetch failed: %w", page, err)
		}
		if batch.MockData {
			result.MockData = true
		}
		if len(batch.Items) == 0 {
			break
		}

		for _, item := range batch.Items {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			if err := s.upsertRecord(connector, tenantID, customerID, item, &result.Counters); err != nil {
				result.Counters.Errors++
				result.Counters.Messages = appendMessage(result.Counters.Messages,
					fmt.Sprintf("%s: %v", item.ExternalID, err))
				log.Warn().Err(err).Str("external_id", item.ExternalID).Msg("record sync failed")
			}
			result.Counters.TotalProcessed++
		}

		if !batch.HasMore {
			break
		}
	}
	return result, nil
}

// upsertRecord normalizes one raw item and applies the identity rule:
// update the row matched by barcode, else by seller SKU, else insert.
func (s *SyncService) upsertRecord(connector Connector, tenantID, customerID int, item RawItem, counters *models.SyncCounters) error {
	product, err := connector.Normalize(tenantID, customerID, item)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if product.IdentityKey() == "" {
		return fmt.Errorf("no identity key (barcode or seller sku)")
	}

	existing, err := s.products.FindByIdentity(tenantID, customerID, product.Barcode, product.SellerSKU)
	if err != nil {
		return fmt.Errorf("identity lookup: %w", err)
	}

	if existing != nil {
		product.ID = existing.ID
		if err := s.products.Update(product); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		counters.Updated++
		return nil
	}

	if err := s.products.Create(product); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	counters.Imported++
	return nil
}

func (s *SyncService) decryptCredentials(conn *models.MarketplaceConnection) (models.Credentials, error) {
	apiKey, err := s.cipher.Decrypt(conn.APIKey)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("api key decrypt failed: %w", err)
	}
	apiSecret, err := s.cipher.Decrypt(conn.APISecret)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("api secret decrypt failed: %w", err)
	}
	return models.Credentials{APIKey: apiKey, APISecret: apiSecret, SellerID: conn.SellerID}, nil
}

// TestConnection exercises a connection's credentials without persisting
// anything.
func (s *SyncService) TestConnection(ctx context.Context, tenantID, customerID int, marketplace models.Marketplace) (*ConnectionCheck, error) {
	connector, err := s.registry.Get(marketplace)
	if err != nil {
		return nil, err
	}

	conn, err := s.connections.GetActive(tenantID, customerID, marketplace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s for customer %d", utils.ErrConnectionNotConfigured, marketplace, customerID)
	}

	creds, err := s.decryptCredentials(conn)
	if err != nil {
		return nil, err
	}
	return connector.NewClient(creds).TestConnection(ctx), nil
}

// Client builds an authenticated client for one connection; used by the
// category and attribute handlers, which need the client but not a run.
func (s *SyncService) Client(tenantID, customerID int, marketplace models.Marketplace) (MarketplaceClient, models.Credentials, error) {
	connector, err := s.registry.Get(marketplace)
	if err != nil {
		return nil, models.Credentials{}, err
	}

	conn, err := s.connections.GetActive(tenantID, customerID, marketplace)
	if err != nil {
		return nil, models.Credentials{}, fmt.Errorf("failed to resolve connection: %w", err)
	}
	if conn == nil {
		return nil, models.Credentials{}, fmt.Errorf("%w: %s for customer %d", utils.ErrConnectionNotConfigured, marketplace, customerID)
	}

	creds, err := s.decryptCredentials(conn)
	if err != nil {
		return nil, models.Credentials{}, err
	}
	return connector.NewClient(creds), creds, nil
}

func terminalStatus(c models.SyncCounters) models.SyncStatus {
	switch {
	case c.Errors == 0:
		return models.SyncSuccess
	case c.Imported+c.Updated > 0:
		return models.SyncPartial
	default:
		return models.SyncError
	}
}

func appendMessage(messages []string, msg string) []string {
	if len(messages) >= maxRunMessages {
		return messages
	}
	return append(messages, msg)
}

func (s *SyncService) acquire(tenantID, customerID int, marketplace models.Marketplace) bool {
	key := fmt.Sprintf("%d:%d:%s", tenantID, customerID, marketplace)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] {
		return false
	}
	s.running[key] = true
	return true
}

func (s *SyncService) release(tenantID, customerID int, marketplace models.Marketplace) {
	key := fmt.Sprintf("%d:%d:%s", tenantID, customerID, marketplace)
	s.mu.Lock()
	delete(s.running, key)
	s.mu.Unlock()
}
