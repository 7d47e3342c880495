package persistence

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/lead"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createLead(t *testing.T, repo *GormLeadRepository, tenantID uuid.UUID, name, phone string, at time.Time) *lead.Lead {
	t.Helper()
	l, err := lead.NewLead(tenantID, name, at)
	require.NoError(t, err)
	l.Phone = phone
	require.NoError(t, repo.Create(context.Background(), l))
	return l
}

func TestGormLeadRepository_FindOldestByPhone(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLeadRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	now := time.Now().UTC()

	createLead(t, repo, tenantID, "Newer", "5511999998888", now)
	oldest := createLead(t, repo, tenantID, "Oldest", "5511999998888", now.Add(-time.Hour))
	createLead(t, repo, uuid.New(), "Other tenant", "5511999998888", now.Add(-2*time.Hour))

	found, err := repo.FindOldestByPhone(ctx, tenantID, "5511999998888")
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, found.ID)
	assert.Equal(t, "Oldest", found.Name)

	_, err = repo.FindOldestByPhone(ctx, tenantID, "5511000000000")
	assert.ErrorIs(t, err, lead.ErrLeadNotFound)

	_, err = repo.FindOldestByPhone(ctx, tenantID, "")
	assert.ErrorIs(t, err, lead.ErrLeadNotFound)
}

func TestGormLeadRepository_FindByIDForTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLeadRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	l := createLead(t, repo, tenantID, "Ana", "5511999998888", time.Now())

	found, err := repo.FindByIDForTenant(ctx, tenantID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "5511999998888", found.Phone)

	_, err = repo.FindByIDForTenant(ctx, uuid.New(), l.ID)
	assert.ErrorIs(t, err, lead.ErrLeadNotFound)
}

func TestGormLeadRepository_AppendObservation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLeadRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	l := createLead(t, repo, tenantID, "Ana", "5511999998888", time.Now())

	t.Run("first block has no separator", func(t *testing.T) {
		require.NoError(t, repo.AppendObservation(ctx, tenantID, l.ID, "first"))
		found, err := repo.FindByIDForTenant(ctx, tenantID, l.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", found.Observations)
	})

	t.Run("existing text stays a prefix", func(t *testing.T) {
		require.NoError(t, repo.AppendObservation(ctx, tenantID, l.ID, "second"))
		found, err := repo.FindByIDForTenant(ctx, tenantID, l.ID)
		require.NoError(t, err)
		assert.Equal(t, "first\n\nsecond", found.Observations)
	})

	t.Run("concurrent appends are all kept", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, repo.AppendObservation(ctx, tenantID, l.ID, fmt.Sprintf("block-%d", i)))
			}(i)
		}
		wg.Wait()

		found, err := repo.FindByIDForTenant(ctx, tenantID, l.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(found.Observations, "first\n\nsecond\n\n"))
		for i := 0; i < 10; i++ {
			assert.Contains(t, found.Observations, fmt.Sprintf("block-%d", i))
		}
	})

	t.Run("other tenant is not found", func(t *testing.T) {
		err := repo.AppendObservation(ctx, uuid.New(), l.ID, "x")
		assert.ErrorIs(t, err, lead.ErrLeadNotFound)
	})
}

func TestGormLeadRepository_AppendObservation_SingleStatement(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	repo := NewGormLeadRepository(db)
	tenantID, leadID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leads" SET "observations"=CASE WHEN observations IS NULL OR observations = '' THEN $1 ELSE observations || $2 END`)).
		WithArgs("block", "\n\nblock", sqlmock.AnyArg(), tenantID, leadID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendObservation(context.Background(), tenantID, leadID, "block"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLeadCascadeRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()

	l := createLead(t, NewGormLeadRepository(db), tenantID, "Ana", "5511999998888", time.Now())

	addresses := NewGormLeadAddressRepository(db)
	require.NoError(t, addresses.Create(ctx, lead.NewAddressFromFields(l, map[string]string{"city": "Campinas", "state": "SP"})))
	gotAddresses, err := addresses.FindByLead(ctx, tenantID, l.ID)
	require.NoError(t, err)
	require.Len(t, gotAddresses, 1)
	assert.Equal(t, "Campinas", gotAddresses[0].City)
	assert.Equal(t, "SP", gotAddresses[0].State)

	responsibles := NewGormLeadResponsibleRepository(db)
	userID := uuid.New()
	require.NoError(t, responsibles.Create(ctx, lead.NewResponsible(l, userID)))
	gotResponsibles, err := responsibles.FindByLead(ctx, tenantID, l.ID)
	require.NoError(t, err)
	require.Len(t, gotResponsibles, 1)
	assert.Equal(t, userID, gotResponsibles[0].UserID)

	followUps := NewGormLeadFollowUpRepository(db)
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, followUps.Create(ctx, lead.NewFollowUp(l, userID, from, 2, "Retornar contato")))
	gotFollowUps, err := followUps.FindByLead(ctx, tenantID, l.ID)
	require.NoError(t, err)
	require.Len(t, gotFollowUps, 1)
	assert.True(t, from.AddDate(0, 0, 2).Equal(gotFollowUps[0].DueAt))
	assert.Equal(t, lead.FollowUpPending, gotFollowUps[0].Status)

	interests := NewGormLeadProductInterestRepository(db)
	productID := uuid.New()
	require.NoError(t, interests.Create(ctx, lead.NewProductInterest(l, productID)))
	gotInterests, err := interests.FindByLead(ctx, tenantID, l.ID)
	require.NoError(t, err)
	require.Len(t, gotInterests, 1)
	assert.Equal(t, productID, gotInterests[0].ProductID)

	tags := NewGormLeadNonPurchaseTagRepository(db)
	reasonID := uuid.New()
	require.NoError(t, tags.Create(ctx, lead.NewNonPurchaseTag(l, reasonID)))
	gotTags, err := tags.FindByLead(ctx, tenantID, l.ID)
	require.NoError(t, err)
	require.Len(t, gotTags, 1)
	assert.Equal(t, reasonID, gotTags[0].ReasonID)

	// tenant scoping
	none, err := tags.FindByLead(ctx, uuid.New(), l.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
