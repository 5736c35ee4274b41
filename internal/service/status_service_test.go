package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellergate/sellergate_api/internal/models"
)

type fakeStatusStores struct {
	hasConn bool
	count   int
	last    *models.SyncLog
}

func (f *fakeStatusStores) HasActive(tenantID, customerID int, marketplace models.Marketplace) (bool, error) {
	return f.hasConn, nil
}

func (f *fakeStatusStores) Count(tenantID, customerID int, marketplace models.Marketplace) (int, error) {
	return f.count, nil
}

func (f *fakeStatusStores) GetLastCompleted(tenantID, customerID int, platform models.Marketplace) (*models.SyncLog, error) {
	return f.last, nil
}

func TestGetStatusWithLastRun(t *testing.T) {
	completed := time.Now().Add(-time.Hour)
	counters, err := json.Marshal(models.SyncCounters{Imported: 5, Updated: 2, Errors: 1})
	require.NoError(t, err)

	stores := &fakeStatusStores{
		hasConn: true,
		count:   7,
		last: &models.SyncLog{
			RunID:       "run-1",
			Status:      models.SyncPartial,
			Data:        counters,
			CompletedAt: &completed,
		},
	}
	svc := NewStatusService(stores, stores, stores, nil)

	report, err := svc.GetStatus(context.Background(), 1, 7, models.MarketplaceTrendyol)
	require.NoError(t, err)
	assert.True(t, report.HasConnection)
	assert.Equal(t, 7, report.ProductCount)
	require.NotNil(t, report.LastSync)
	assert.Equal(t, "run-1", report.LastSync.RunID)
	assert.Equal(t, models.SyncPartial, report.LastSync.Status)
	assert.Equal(t, 5, report.LastSync.Imported)
	assert.Equal(t, 2, report.LastSync.Updated)
	assert.Equal(t, 1, report.LastSync.Errors)
}

func TestGetStatusNeverSynced(t *testing.T) {
	stores := &fakeStatusStores{hasConn: false, count: 0, last: nil}
	svc := NewStatusService(stores, stores, stores, nil)

	report, err := svc.GetStatus(context.Background(), 1, 7, models.MarketplaceHepsiburada)
	require.NoError(t, err)
	assert.False(t, report.HasConnection)
	assert.Zero(t, report.ProductCount)
	assert.Nil(t, report.LastSync)
}
