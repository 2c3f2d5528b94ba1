package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/db/dbtest"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/repository"
)

const missingID = "0190f3a4-0000-7000-8000-00000000dead"

type fixture struct {
	svc       *Service
	incidents *repository.BunIncidentRepository
	alice     auth.Identity
	bob       auth.Identity
	admin     auth.Identity
	incident  *models.Incident
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.NewTestDB(t)
	users := repository.NewBunUserRepository(db)
	incidents := repository.NewBunIncidentRepository(db)

	policy, err := auth.NewPolicy()
	require.NoError(t, err)

	seed := func(badge string, admin bool) auth.Identity {
		u := &models.User{BadgeID: badge, Name: "Officer " + badge, PasswordHash: "x", IsAdmin: admin}
		require.NoError(t, users.Create(ctx, u))
		return auth.Identity{UserID: u.ID, BadgeID: badge, IsAdmin: admin}
	}
	alice := seed("ALICE", false)

	incident := &models.Incident{
		CaseNumber:   bunx.NewCaseNumber(time.Now()),
		OccurredAt:   time.Date(2025, 1, 10, 22, 15, 0, 0, time.UTC),
		Location:     "12 Main St",
		CrimeType:    "Burglary",
		Description:  "Rear window forced",
		Status:       models.IncidentStatusOpen,
		ReportedByID: alice.UserID,
	}
	require.NoError(t, incidents.Create(ctx, incident))

	return &fixture{
		svc:       NewService(repository.NewBunEvidenceRepository(db), incidents, policy),
		incidents: incidents,
		alice:     alice,
		bob:       seed("BOB", false),
		admin:     seed("ADMIN", true),
		incident:  incident,
	}
}

func crowbar() CreateInput {
	return CreateInput{Description: "Crowbar", Type: "Physical Item", StorageReference: "locker-12"}
}

func TestService_CreateAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.alice, f.incident.ID, crowbar())
	require.NoError(t, err)
	assert.Equal(t, f.incident.ID, first.IncidentID)
	assert.Equal(t, f.alice.UserID, first.AddedByID)
	require.NotNil(t, first.AddedBy)
	assert.Equal(t, "ALICE", first.AddedBy.BadgeID)

	second, err := f.svc.Create(ctx, f.bob, f.incident.ID, CreateInput{
		Description: " CCTV still ", Type: "Photo", StorageReference: "s3://bucket/cctv.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "CCTV still", second.Description)

	items, err := f.svc.ListForIncident(ctx, f.incident.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
	assert.Equal(t, "BOB", items[1].AddedBy.BadgeID)
}

func TestService_CreateChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.alice, f.incident.ID, CreateInput{Description: " ", Type: "Fingerprint"})
		require.True(t, apperr.IsKind(err, apperr.KindValidation))
		fields := apperr.As(err).Fields
		assert.Contains(t, fields, "description")
		assert.Contains(t, fields, "type")
		assert.Contains(t, fields, "storageReference")
	})

	t.Run("validation precedes parent lookup", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.alice, missingID, CreateInput{})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.alice, missingID, crowbar())
		require.True(t, apperr.IsKind(err, apperr.KindNotFound))
		assert.Equal(t, MessageIncidentNotFound, apperr.As(err).Message)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := f.svc.Create(ctx, auth.Identity{}, f.incident.ID, crowbar())
		assert.True(t, apperr.IsKind(err, apperr.KindAuthRequired))
	})
}

// racingEvidenceRepository runs beforeCreate ahead of the real insert.
type racingEvidenceRepository struct {
	repository.EvidenceRepository
	beforeCreate func(ctx context.Context)
}

func (r *racingEvidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	r.beforeCreate(ctx)
	return r.EvidenceRepository.Create(ctx, evidence)
}

func TestService_CreateWhenIncidentDeletedConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.evidence = &racingEvidenceRepository{
		EvidenceRepository: f.svc.evidence,
		beforeCreate: func(ctx context.Context) {
			require.NoError(t, f.incidents.Delete(ctx, f.incident.ID))
		},
	}

	_, err := f.svc.Create(ctx, f.alice, f.incident.ID, crowbar())
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
	assert.Equal(t, MessageIncidentNotFound, appErr.Message)
}

func TestService_ListForMissingIncident(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListForIncident(context.Background(), missingID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, f.alice, f.incident.ID, crowbar())
	require.NoError(t, err)

	t.Run("mismatched incident", func(t *testing.T) {
		err := f.svc.Delete(ctx, f.alice, missingID, item.ID)
		require.True(t, apperr.IsKind(err, apperr.KindValidation))
		assert.Equal(t, MessageWrongIncident, apperr.As(err).Message)
	})

	t.Run("stranger is forbidden and nothing is deleted", func(t *testing.T) {
		err := f.svc.Delete(ctx, f.bob, f.incident.ID, item.ID)
		require.True(t, apperr.IsKind(err, apperr.KindForbidden))

		items, err := f.svc.ListForIncident(ctx, f.incident.ID)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("adder deletes, then not found", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(ctx, f.alice, f.incident.ID, item.ID))

		for i := 0; i < 2; i++ {
			err := f.svc.Delete(ctx, f.alice, f.incident.ID, item.ID)
			assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "attempt %d", i)
		}
	})

	t.Run("admin deletes evidence added by others", func(t *testing.T) {
		other, err := f.svc.Create(ctx, f.bob, f.incident.ID, crowbar())
		require.NoError(t, err)
		require.NoError(t, f.svc.Delete(ctx, f.admin, f.incident.ID, other.ID))
	})

	t.Run("incident owner cannot delete evidence added by others", func(t *testing.T) {
		other, err := f.svc.Create(ctx, f.bob, f.incident.ID, crowbar())
		require.NoError(t, err)
		err = f.svc.Delete(ctx, f.alice, f.incident.ID, other.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	})
}

func TestService_ParentDeletionRemovesEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.alice, f.incident.ID, crowbar())
	require.NoError(t, err)

	require.NoError(t, f.incidents.Delete(ctx, f.incident.ID))

	_, err = f.svc.ListForIncident(ctx, f.incident.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
