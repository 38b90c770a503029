package application_test

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/clinicore/authorization/internal/application"
	"github.com/clinicore/authorization/internal/domain/entity"
	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
	"github.com/clinicore/authorization/pkg/apperrors"
)

type syncFixture struct {
	svc           *application.SyncService
	accounts      *memAccountRepo
	doctors       *memDoctorRepo
	receptionists *memReceptionistRepo
	patients      *memPatientRepo
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	accounts := newMemAccountRepo()
	doctors := newMemDoctorRepo()
	receptionists := newMemReceptionistRepo()
	patients := newMemPatientRepo()

	svc := application.NewSyncService(accounts, doctors, receptionists, patients, nil, logger)
	return &syncFixture{
		svc:           svc,
		accounts:      accounts,
		doctors:       doctors,
		receptionists: receptionists,
		patients:      patients,
	}
}

func mustEnvelope(t *testing.T, kind rabbitmq.FactKind, payload any) rabbitmq.Envelope {
	t.Helper()
	env, err := rabbitmq.NewEnvelope(kind, payload)
	assert.NoError(t, err)
	return env
}

func (f *syncFixture) seedAccount(t *testing.T, id string, role entity.Role) {
	t.Helper()
	err := f.accounts.Create(context.Background(), &entity.Account{
		ID:    id,
		Email: id + "@example.com",
		Role:  role,
	})
	assert.NoError(t, err)
}

func TestBindings_CoverEveryInboundQueue(t *testing.T) {
	f := newSyncFixture(t)

	bindings := f.svc.Bindings()
	assert.Len(t, bindings, 12)

	seen := map[string]bool{}
	for _, b := range bindings {
		assert.NotNil(t, b.Handler)
		assert.False(t, seen[b.Queue], "queue %s bound twice", b.Queue)
		seen[b.Queue] = true
	}
	assert.True(t, seen[rabbitmq.QueueAccountProvisioned])
	assert.True(t, seen[rabbitmq.QueueDoctorAdded])
	assert.True(t, seen[rabbitmq.QueuePatientDeleted])
}

func TestHandleAccountProvisioned(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	fact := rabbitmq.AccountFact{
		ID:          "acc-prov-1",
		Email:       "newdoctor@example.com",
		PhoneNumber: "+3612345678",
		Role:        string(entity.RoleDoctor),
	}
	env := mustEnvelope(t, rabbitmq.KindAccountProvisioned, fact)

	assert.NoError(t, f.svc.HandleAccountProvisioned(ctx, env))

	account, err := f.accounts.GetByID(ctx, "acc-prov-1")
	assert.NoError(t, err)
	assert.Equal(t, entity.RoleDoctor, account.Role)
	assert.True(t, account.IsEmailVerified, "provisioned accounts arrive pre-verified")
	assert.Equal(t, string(entity.RoleReceptionist), account.CreatedBy)
	assert.Empty(t, account.PasswordHash)

	// redelivery of the same fact is a no-op
	assert.NoError(t, f.svc.HandleAccountProvisioned(ctx, env))
	all, err := f.accounts.GetAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHandleAccountFieldUpdates(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "acc-1", entity.RolePatient)

	phoneEnv := mustEnvelope(t, rabbitmq.KindAccountPhone, rabbitmq.AccountFieldFact{AccountID: "acc-1", Value: "+3611111111"})
	assert.NoError(t, f.svc.HandleAccountPhoneUpdated(ctx, phoneEnv))

	photoEnv := mustEnvelope(t, rabbitmq.KindAccountPhoto, rabbitmq.AccountFieldFact{AccountID: "acc-1", Value: "photo-9"})
	assert.NoError(t, f.svc.HandleAccountPhotoUpdated(ctx, photoEnv))

	account, err := f.accounts.GetByID(ctx, "acc-1")
	assert.NoError(t, err)
	assert.Equal(t, "+3611111111", account.PhoneNumber)
	assert.Equal(t, "photo-9", account.PhotoID)

	// overwriting with the same value stays idempotent
	assert.NoError(t, f.svc.HandleAccountPhoneUpdated(ctx, phoneEnv))

	// unknown account is a permanent failure
	missing := mustEnvelope(t, rabbitmq.KindAccountPhone, rabbitmq.AccountFieldFact{AccountID: "nope", Value: "x"})
	err = f.svc.HandleAccountPhoneUpdated(ctx, missing)
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHandleDoctorLifecycle(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "acc-doc", entity.RoleDoctor)

	fact := rabbitmq.DoctorFact{
		ID: "doc-1", AccountID: "acc-doc",
		FirstName: "Anna", LastName: "Kovacs",
		CabinetNumber: 12, Status: entity.ProfileStatusAtWork,
	}

	added := mustEnvelope(t, rabbitmq.KindDoctor, fact)
	assert.NoError(t, f.svc.HandleDoctorAdded(ctx, added))

	doctor, err := f.doctors.GetByID(ctx, "doc-1")
	assert.NoError(t, err)
	assert.Equal(t, 12, doctor.CabinetNumber)

	// redelivered add overwrites rather than duplicating
	assert.NoError(t, f.svc.HandleDoctorAdded(ctx, added))

	fact.Status = entity.ProfileStatusInactive
	updated := mustEnvelope(t, rabbitmq.KindDoctor, fact)
	assert.NoError(t, f.svc.HandleDoctorUpdated(ctx, updated))
	doctor, err = f.doctors.GetByID(ctx, "doc-1")
	assert.NoError(t, err)
	assert.Equal(t, entity.ProfileStatusInactive, doctor.Status)

	deleted := mustEnvelope(t, rabbitmq.KindDoctor, fact)
	assert.NoError(t, f.svc.HandleDoctorDeleted(ctx, deleted))
	_, err = f.doctors.GetByID(ctx, "doc-1")
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)

	// deleting an already absent row is still fine
	assert.NoError(t, f.svc.HandleDoctorDeleted(ctx, deleted))
}

func TestHandleDoctorAdded_UnknownAccount(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	env := mustEnvelope(t, rabbitmq.KindDoctor, rabbitmq.DoctorFact{
		ID: "doc-1", AccountID: "ghost-account",
		FirstName: "Anna", LastName: "Kovacs",
		Status: entity.ProfileStatusAtWork,
	})

	err := f.svc.HandleDoctorAdded(ctx, env)
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)

	// no orphan row was written
	_, err = f.doctors.GetByID(ctx, "doc-1")
	assert.ErrorAs(t, err, &nf)
}

func TestHandleReceptionistLifecycle(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "acc-rec", entity.RoleReceptionist)

	fact := rabbitmq.ReceptionistFact{
		ID: "rec-1", AccountID: "acc-rec",
		FirstName: "Eva", LastName: "Nagy",
		Status: entity.ProfileStatusAtWork,
	}

	assert.NoError(t, f.svc.HandleReceptionistAdded(ctx, mustEnvelope(t, rabbitmq.KindReceptionist, fact)))

	rec, err := f.receptionists.GetByAccountID(ctx, "acc-rec")
	assert.NoError(t, err)
	assert.Equal(t, "Eva", rec.FirstName)

	assert.NoError(t, f.svc.HandleReceptionistDeleted(ctx, mustEnvelope(t, rabbitmq.KindReceptionist, fact)))
	_, err = f.receptionists.GetByID(ctx, "rec-1")
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHandlePatientLifecycle(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "acc-pat", entity.RolePatient)

	fact := rabbitmq.PatientFact{
		ID: "pat-1", AccountID: "acc-pat",
		FirstName: "Gabor", LastName: "Toth",
	}

	assert.NoError(t, f.svc.HandlePatientAdded(ctx, mustEnvelope(t, rabbitmq.KindPatient, fact)))

	patient, err := f.patients.GetByID(ctx, "pat-1")
	assert.NoError(t, err)
	assert.Equal(t, "Gabor", patient.FirstName)

	fact.LastName = "Szabo"
	assert.NoError(t, f.svc.HandlePatientUpdated(ctx, mustEnvelope(t, rabbitmq.KindPatient, fact)))
	patient, err = f.patients.GetByID(ctx, "pat-1")
	assert.NoError(t, err)
	assert.Equal(t, "Szabo", patient.LastName)

	assert.NoError(t, f.svc.HandlePatientDeleted(ctx, mustEnvelope(t, rabbitmq.KindPatient, fact)))
	_, err = f.patients.GetByID(ctx, "pat-1")
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHandlers_RejectMismatchedKind(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	env := mustEnvelope(t, rabbitmq.KindPatient, rabbitmq.PatientFact{ID: "pat-1", AccountID: "acc-1"})
	assert.Error(t, f.svc.HandleDoctorAdded(ctx, env))
	assert.Error(t, f.svc.HandleAccountProvisioned(ctx, env))
}
