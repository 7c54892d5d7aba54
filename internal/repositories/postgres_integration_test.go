package repositories

import (
	"context"
	"testing"

	"facilityops/internal/models"
	"facilityops/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These run against TEST_DATABASE_URL and are skipped without it.

func TestUserRepo_Postgres(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	repo := NewUserRepository(db.Pool)
	ctx := context.Background()

	existing := testhelpers.SetupTestUser(t, db, models.RoleTechnician)

	t.Run("duplicate email is reported", func(t *testing.T) {
		dup := testhelpers.NewUser(models.RoleTechnician)
		dup.Email = existing.Email
		assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateEmail)
	})

	t.Run("lookup by email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, existing.Email)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, got.ID)
		assert.Equal(t, models.RoleTechnician, got.Role)
	})

	t.Run("delete twice", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, existing.ID))
		assert.ErrorIs(t, repo.Delete(ctx, existing.ID), ErrNotFound)
	})
}

func TestWorkOrderRepo_Postgres(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	repo := NewWorkOrderRepository(db.Pool)
	ctx := context.Background()

	owner := testhelpers.SetupTestUser(t, db, models.RoleTechnician)

	wo := testhelpers.ValidWorkOrder()
	wo.ID = uuid.New()
	wo.CreatedBy = owner.ID
	wo.Status = models.StatusPending
	require.Empty(t, wo.Assessment.ApplyDefaults())
	require.NoError(t, repo.Create(ctx, wo))
	assert.False(t, wo.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, wo.Title, got.Title)
	assert.Equal(t, models.Yes, got.Assessment.HasAtmosphericHazard)
	assert.Equal(t, models.No, got.Assessment.HasEngulfmentHazard)
	assert.Empty(t, got.Pictures)

	got.Status = models.StatusCompleted
	got.Pictures = []string{"http://minio.local/pictures/a.jpg"}
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, owner.ID, got.CreatedBy)

	found, err := repo.Search(ctx, "tank 7", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"http://minio.local/pictures/a.jpg"}, found[0].Pictures)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusCompleted])

	existing, err := repo.ExistingIDs(ctx, []uuid.UUID{wo.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]bool{wo.ID: true}, existing)

	users := NewUserRepository(db.Pool)
	assert.ErrorIs(t, users.Delete(ctx, owner.ID), ErrReferenced)

	require.NoError(t, repo.Delete(ctx, wo.ID))
	_, err = repo.GetByID(ctx, wo.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, users.Delete(ctx, owner.ID))
}
