package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/testutil"
)

func TestWebhookEventRepository_Record_Dedup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewWebhookEventRepository(db)
	now := time.Now().UTC()

	event, inserted, err := repo.Record("evt_1", "customer.subscription.updated", now)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, model.EventStatusReceived, event.Status)

	event, inserted, err = repo.Record("evt_1", "customer.subscription.updated", now)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "evt_1", event.EventID)

	var count int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookEventRepository_Finish(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewWebhookEventRepository(db)
	now := time.Now().UTC()

	_, _, err := repo.Record("evt_2", "checkout.session.completed", now)
	require.NoError(t, err)

	require.NoError(t, repo.Finish("evt_2", model.EventStatusFailed, "ledger down", now))
	event, err := repo.GetByEventID("evt_2")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusFailed, event.Status)
	assert.Equal(t, "ledger down", event.Error)
	assert.Equal(t, 1, event.Attempts)
	assert.Nil(t, event.ProcessedAt)
	assert.False(t, event.Settled())

	require.NoError(t, repo.Finish("evt_2", model.EventStatusProcessed, "", now))
	event, err = repo.GetByEventID("evt_2")
	require.NoError(t, err)
	assert.Equal(t, 2, event.Attempts)
	assert.NotNil(t, event.ProcessedAt)
	assert.True(t, event.Settled())
}

func TestWebhookEventRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewWebhookEventRepository(db)
	now := time.Now().UTC()

	for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
		_, _, err := repo.Record(id, "customer.subscription.deleted", now)
		require.NoError(t, err)
	}
	require.NoError(t, repo.Finish("evt_b", model.EventStatusFailed, "boom", now))

	events, total, err := repo.List(model.EventStatusFailed, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_b", events[0].EventID)
}
