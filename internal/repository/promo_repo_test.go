package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/testutil"
)

func TestPromoRepository_GetByCode_ExactMatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPromoRepository(db)
	testutil.TestPromoCode(t, db, "SAGE2025")

	found, err := repo.GetByCode("SAGE2025")
	require.NoError(t, err)
	assert.Equal(t, "SAGE2025", found.Code)

	_, err = repo.GetByCode("sage2025")
	assert.Error(t, err)
}

func TestPromoRepository_ClaimUse_RespectsLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPromoRepository(db)
	promo := testutil.TestPromoCode(t, db, "ONCE", testutil.WithMaxUses(1))
	now := time.Now().UTC()

	ok, err := repo.ClaimUse(promo.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimUse(promo.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := repo.GetByID(promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TimesUsed)
}

func TestPromoRepository_ClaimUse_Unlimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPromoRepository(db)
	promo := testutil.TestPromoCode(t, db, "OPEN")
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		ok, err := repo.ClaimUse(promo.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	updated, err := repo.GetByID(promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TimesUsed)
}

func TestPromoRepository_ClaimUse_InactiveOrExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPromoRepository(db)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	inactive := testutil.TestPromoCode(t, db, "OFF", testutil.WithInactive())
	expired := testutil.TestPromoCode(t, db, "OLD", testutil.WithWindow(nil, &past))

	stored, err := repo.GetByID(inactive.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	ok, err := repo.ClaimUse(inactive.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ClaimUse(expired.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPromoRepository_ClaimUse_ConcurrentNeverOverruns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	assertConcurrentClaims(t, db)
}

func TestPromoRepository_ClaimUse_ConcurrentPostgres(t *testing.T) {
	db := testutil.SetupPostgresTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	assertConcurrentClaims(t, db)
}

// assertConcurrentClaims 10 个并发占用只有 max_uses 个成功
func assertConcurrentClaims(t *testing.T, db *gorm.DB) {
	t.Helper()

	repo := NewPromoRepository(db)
	promo := testutil.TestPromoCode(t, db, "RACE", testutil.WithMaxUses(3))
	now := time.Now().UTC()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimUse(promo.ID, now)
			if err == nil && ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, claimed)
	updated, err := repo.GetByID(promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TimesUsed)
}
