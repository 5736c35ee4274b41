package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/utils"
	"github.com/sellergate/sellergate_api/pkg/httpx"
)

type fakeItem struct {
	Barcode string
	SKU     string
	Name    string
	Broken  bool
}

type fakeConnector struct {
	pages [][]fakeItem
}

func (c *fakeConnector) Marketplace() models.Marketplace { return models.MarketplaceTrendyol }

func (c *fakeConnector) NewClient(creds models.Credentials) MarketplaceClient {
	return &fakeClient{pages: c.pages}
}

func (c *fakeConnector) Normalize(tenantID, customerID int, item RawItem) (*models.Product, error) {
	fi := item.Data.(fakeItem)
	if fi.Broken {
		return nil, errors.New("malformed record")
	}
	return &models.Product{
		TenantID:   tenantID,
		CustomerID: customerID,
		ExternalID: item.ExternalID,
		Name:       fi.Name,
		Source:     models.MarketplaceTrendyol,
		Barcode:    fi.Barcode,
		SellerSKU:  fi.SKU,
		Status:     models.ProductActive,
	}, nil
}

type fakeClient struct {
	pages [][]fakeItem
	calls int
}

func (c *fakeClient) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	c.calls++
	if page >= len(c.pages) {
		return &ProductPage{}, nil
	}
	items := make([]RawItem, 0, len(c.pages[page]))
	for i, fi := range c.pages[page] {
		items = append(items, RawItem{ExternalID: fmt.Sprintf("p%d-%d", page, i), Data: fi})
	}
	return &ProductPage{Items: items, HasMore: page < len(c.pages)-1}, nil
}

func (c *fakeClient) GetProduct(ctx context.Context, externalID string) (*RawItem, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) ListCategories(ctx context.Context) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) ListCategoryAttributes(ctx context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error) {
	return nil, nil, errors.New("not implemented")
}

func (c *fakeClient) TestConnection(ctx context.Context) *ConnectionCheck {
	return &ConnectionCheck{Success: true, Message: "ok"}
}

type fakeConnectionStore struct {
	conn *models.MarketplaceConnection
	err  error
}

func (s *fakeConnectionStore) GetActive(tenantID, customerID int, marketplace models.Marketplace) (*models.MarketplaceConnection, error) {
	return s.conn, s.err
}

type fakeProductStore struct {
	byKey     map[string]*models.Product
	createErr error
	nextID    int
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{byKey: make(map[string]*models.Product)}
}

func (s *fakeProductStore) FindByIdentity(tenantID, customerID int, barcode, sellerSKU string) (*models.Product, error) {
	if barcode != "" {
		if p, ok := s.byKey["barcode:"+barcode]; ok {
			return p, nil
		}
	}
	if sellerSKU != "" {
		if p, ok := s.byKey["sku:"+sellerSKU]; ok {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeProductStore) Create(p *models.Product) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	p.ID = s.nextID
	s.byKey[p.IdentityKey()] = p
	return nil
}

func (s *fakeProductStore) Update(p *models.Product) error {
	s.byKey[p.IdentityKey()] = p
	return nil
}

type fakeRunLogStore struct {
	created   []*models.SyncLog
	completed []completedRun
}

type completedRun struct {
	id       int
	status   models.SyncStatus
	counters models.SyncCounters
	message  string
}

func (s *fakeRunLogStore) Create(l *models.SyncLog) error {
	l.ID = len(s.created) + 1
	s.created = append(s.created, l)
	return nil
}

func (s *fakeRunLogStore) Complete(id int, status models.SyncStatus, counters models.SyncCounters, message string) error {
	s.completed = append(s.completed, completedRun{id: id, status: status, counters: counters, message: message})
	return nil
}

type plainDecryptor struct{}

func (plainDecryptor) Decrypt(stored string) (string, error) { return stored, nil }

func newSyncFixture(pages [][]fakeItem, pageSize int) (*SyncService, *fakeProductStore, *fakeRunLogStore) {
	registry := NewConnectorRegistry()
	registry.Register(&fakeConnector{pages: pages})

	conns := &fakeConnectionStore{conn: &models.MarketplaceConnection{
		ID: 1, TenantID: 1, CustomerID: 7,
		Marketplace: models.MarketplaceTrendyol,
		APIKey:      "key", APISecret: "secret", SellerID: "42",
		Status: models.ConnectionActive,
	}}
	products := newFakeProductStore()
	logs := &fakeRunLogStore{}

	svc := NewSyncService(conns, products, logs, plainDecryptor{}, registry, pageSize)
	return svc, products, logs
}

func TestSyncProductsImportsThenUpdates(t *testing.T) {
	pages := [][]fakeItem{{
		{Barcode: "111", SKU: "sku-1", Name: "Kettle"},
		{Barcode: "222", SKU: "sku-2", Name: "Toaster"},
	}}

	svc, products, logs := newSyncFixture(pages, 50)

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, result.Status)
	assert.Equal(t, 2, result.Counters.Imported)
	assert.Equal(t, 0, result.Counters.Updated)
	assert.Equal(t, 2, result.Counters.TotalProcessed)
	assert.Len(t, products.byKey, 2)

	// Re-running the same catalog must update, not duplicate.
	result, err = svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, result.Status)
	assert.Equal(t, 0, result.Counters.Imported)
	assert.Equal(t, 2, result.Counters.Updated)
	assert.Len(t, products.byKey, 2)

	require.Len(t, logs.completed, 2)
	assert.Equal(t, models.SyncSuccess, logs.completed[1].status)
}

func TestSyncProductsMatchesBySKUWhenBarcodeMissing(t *testing.T) {
	svc, products, _ := newSyncFixture([][]fakeItem{{
		{SKU: "sku-only", Name: "Blender"},
	}}, 50)

	_, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Updated)
	assert.Len(t, products.byKey, 1)
}

func TestSyncProductsPartialOnRecordFailures(t *testing.T) {
	items := make([]fakeItem, 0, 10)
	for i := 0; i < 9; i++ {
		items = append(items, fakeItem{Barcode: fmt.Sprintf("b%d", i), Name: "ok"})
	}
	items = append(items, fakeItem{Barcode: "b9", Name: "bad", Broken: true})

	svc, _, logs := newSyncFixture([][]fakeItem{items}, 50)

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPartial, result.Status)
	assert.Equal(t, 9, result.Counters.Imported)
	assert.Equal(t, 1, result.Counters.Errors)
	assert.Equal(t, 10, result.Counters.TotalProcessed)
	require.NotEmpty(t, result.Counters.Messages)
	assert.Contains(t, result.Counters.Messages[0], "malformed record")

	require.Len(t, logs.completed, 1)
	assert.Equal(t, models.SyncPartial, logs.completed[0].status)
}

func TestSyncProductsErrorWhenNothingSucceeds(t *testing.T) {
	svc, _, logs := newSyncFixture([][]fakeItem{{
		{Barcode: "x", Broken: true},
		{Barcode: "y", Broken: true},
	}}, 50)

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, models.SyncError, result.Status)
	assert.Equal(t, 2, result.Counters.Errors)
	assert.Equal(t, 0, result.Counters.Imported+result.Counters.Updated)
	assert.Equal(t, models.SyncError, logs.completed[0].status)
}

func TestSyncProductsRecordWithoutIdentityCountsAsError(t *testing.T) {
	svc, _, _ := newSyncFixture([][]fakeItem{{
		{Name: "no identifiers at all"},
	}}, 50)

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, models.SyncError, result.Status)
	assert.Equal(t, 1, result.Counters.Errors)
	assert.Contains(t, result.Counters.Messages[0], "identity")
}

func TestSyncProductsPaginatesUntilEmptyPage(t *testing.T) {
	pages := [][]fakeItem{
		{{Barcode: "a1"}, {Barcode: "a2"}},
		{{Barcode: "b1"}, {Barcode: "b2"}},
	}

	svc, products, _ := newSyncFixture(pages, 2)

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Counters.Imported)
	assert.Len(t, products.byKey, 4)
}

func TestSyncProductsStopsOnEmptyPageWhenHasMoreLies(t *testing.T) {
	// Some gateways report hasMore=true right up to the empty page; the
	// empty page itself must end the loop.
	svc, products, _ := newSyncFixture(nil, 2)

	client := &openEndedClient{fakeClient{pages: [][]fakeItem{
		{{Barcode: "a1"}, {Barcode: "a2"}},
		{{Barcode: "b1"}, {Barcode: "b2"}},
	}}}
	registry := NewConnectorRegistry()
	registry.Register(&openEndedConnector{client: client})
	svc.registry = registry

	result, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Counters.Imported)
	assert.Len(t, products.byKey, 4)

	// Two product pages plus the terminating empty one.
	assert.Equal(t, 3, client.calls)
}

type openEndedConnector struct {
	fakeConnector
	client *openEndedClient
}

func (c *openEndedConnector) NewClient(creds models.Credentials) MarketplaceClient {
	return c.client
}

type openEndedClient struct{ fakeClient }

func (c *openEndedClient) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	batch, err := c.fakeClient.ListProducts(ctx, page, size)
	if err != nil {
		return nil, err
	}
	batch.HasMore = true
	return batch, nil
}

func TestSyncProductsNoConnection(t *testing.T) {
	registry := NewConnectorRegistry()
	registry.Register(&fakeConnector{})
	svc := NewSyncService(&fakeConnectionStore{}, newFakeProductStore(), &fakeRunLogStore{}, plainDecryptor{}, registry, 50)

	_, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConnectionNotConfigured)
}

func TestSyncProductsUnknownMarketplace(t *testing.T) {
	svc := NewSyncService(&fakeConnectionStore{}, newFakeProductStore(), &fakeRunLogStore{}, plainDecryptor{}, NewConnectorRegistry(), 50)

	_, err := svc.SyncProducts(context.Background(), 1, 7, models.Marketplace("etsy"))
	assert.ErrorIs(t, err, utils.ErrInvalidMarketplace)
}

func TestSyncProductsCancelledContext(t *testing.T) {
	svc, _, logs := newSyncFixture([][]fakeItem{{{Barcode: "z"}}}, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SyncProducts(ctx, 1, 7, models.MarketplaceTrendyol)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The pending run row is still closed out as error.
	require.Len(t, logs.completed, 1)
	assert.Equal(t, models.SyncError, logs.completed[0].status)
}

func TestSyncProductsEngineFailureCompletesRunAsError(t *testing.T) {
	svc, _, logs := newSyncFixture([][]fakeItem{{{Barcode: "boom"}}}, 50)

	failing := &failingClientConnector{}
	registry := NewConnectorRegistry()
	registry.Register(failing)
	svc.registry = registry

	_, err := svc.SyncProducts(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "fetch failed"))

	require.Len(t, logs.completed, 1)
	assert.Equal(t, models.SyncError, logs.completed[0].status)
	assert.Contains(t, logs.completed[0].message, "fetch failed")
}

type failingClientConnector struct{ fakeConnector }

func (c *failingClientConnector) NewClient(creds models.Credentials) MarketplaceClient {
	return &failingClient{}
}

type failingClient struct{ fakeClient }

func (c *failingClient) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	return nil, errors.New("upstream unavailable")
}

func TestTerminalStatusPolicy(t *testing.T) {
	assert.Equal(t, models.SyncSuccess, terminalStatus(models.SyncCounters{Imported: 3}))
	assert.Equal(t, models.SyncSuccess, terminalStatus(models.SyncCounters{}))
	assert.Equal(t, models.SyncPartial, terminalStatus(models.SyncCounters{Imported: 1, Errors: 2}))
	assert.Equal(t, models.SyncPartial, terminalStatus(models.SyncCounters{Updated: 1, Errors: 1}))
	assert.Equal(t, models.SyncError, terminalStatus(models.SyncCounters{Errors: 4}))
}

func TestTestConnection(t *testing.T) {
	svc, _, _ := newSyncFixture(nil, 50)

	check, err := svc.TestConnection(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.True(t, check.Success)
}
