package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinicore/authorization/internal/domain/entity"
	repo "github.com/clinicore/authorization/internal/domain/repository"
	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
	"github.com/clinicore/authorization/pkg/apperrors"
	"github.com/clinicore/authorization/pkg/helpers"
)

const dedupTTL = 24 * time.Hour

// SyncService applies facts delivered by upstream services to the local
// store. It sits behind the broker trust boundary: no authentication checks,
// but every handler is idempotent under redelivery and same-account mutations
// are serialized through a per-account lock.
type SyncService struct {
	Accounts      repo.AccountRepository
	Doctors       repo.DoctorRepository
	Receptionists repo.ReceptionistRepository
	Patients      repo.PatientRepository
	Redis         *redis.Client
	Logger        *logrus.Logger

	locks sync.Map // accountID -> *sync.Mutex
}

func NewSyncService(
	accounts repo.AccountRepository,
	doctors repo.DoctorRepository,
	receptionists repo.ReceptionistRepository,
	patients repo.PatientRepository,
	rdb *redis.Client,
	logger *logrus.Logger,
) *SyncService {
	return &SyncService{
		Accounts:      accounts,
		Doctors:       doctors,
		Receptionists: receptionists,
		Patients:      patients,
		Redis:         rdb,
		Logger:        logger,
	}
}

// Bindings wires every inbound queue to its handler.
func (s *SyncService) Bindings() []rabbitmq.Binding {
	return []rabbitmq.Binding{
		{Queue: rabbitmq.QueueAccountProvisioned, Handler: s.dedup(s.HandleAccountProvisioned)},
		{Queue: rabbitmq.QueueAccountPhone, Handler: s.dedup(s.HandleAccountPhoneUpdated)},
		{Queue: rabbitmq.QueueAccountPhoto, Handler: s.dedup(s.HandleAccountPhotoUpdated)},
		{Queue: rabbitmq.QueueDoctorAdded, Handler: s.dedup(s.HandleDoctorAdded)},
		{Queue: rabbitmq.QueueDoctorUpdated, Handler: s.dedup(s.HandleDoctorUpdated)},
		{Queue: rabbitmq.QueueDoctorDeleted, Handler: s.dedup(s.HandleDoctorDeleted)},
		{Queue: rabbitmq.QueueReceptionistAdded, Handler: s.dedup(s.HandleReceptionistAdded)},
		{Queue: rabbitmq.QueueReceptionistUpdated, Handler: s.dedup(s.HandleReceptionistUpdated)},
		{Queue: rabbitmq.QueueReceptionistDeleted, Handler: s.dedup(s.HandleReceptionistDeleted)},
		{Queue: rabbitmq.QueuePatientAdded, Handler: s.dedup(s.HandlePatientAdded)},
		{Queue: rabbitmq.QueuePatientUpdated, Handler: s.dedup(s.HandlePatientUpdated)},
		{Queue: rabbitmq.QueuePatientDeleted, Handler: s.dedup(s.HandlePatientDeleted)},
	}
}

// dedup short-circuits redeliveries already applied, using the envelope
// message id. Best-effort only: handlers stay idempotent on their own, the
// cache just saves the round-trip.
func (s *SyncService) dedup(h rabbitmq.Handler) rabbitmq.Handler {
	return func(ctx context.Context, env rabbitmq.Envelope) error {
		if s.Redis != nil && env.MessageID != "" {
			key := "sync:applied:" + env.MessageID
			if n, err := s.Redis.Exists(ctx, key).Result(); err == nil && n > 0 {
				return nil
			}
		}
		if err := h(ctx, env); err != nil {
			return err
		}
		if s.Redis != nil && env.MessageID != "" {
			if err := s.Redis.Set(ctx, "sync:applied:"+env.MessageID, "1", dedupTTL).Err(); err != nil {
				s.Logger.WithError(err).Warn("dedup cache write failed")
			}
		}
		return nil
	}
}

// dropCachedAccount keeps the identity-lookup cache coherent with inbound
// field updates.
func (s *SyncService) dropCachedAccount(ctx context.Context, accountID string) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, keyAccountCache(accountID)); err != nil {
		s.Logger.WithError(err).Warn("account cache invalidation failed")
	}
}

func (s *SyncService) lockAccount(accountID string) func() {
	v, _ := s.locks.LoadOrStore(accountID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// HandleAccountProvisioned creates an account on behalf of a trusted internal
// caller (staff onboarding). The email arrives pre-verified; there is no
// password until the invited user sets one elsewhere.
func (s *SyncService) HandleAccountProvisioned(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.AccountFact
	if err := env.DecodePayload(rabbitmq.KindAccountProvisioned, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.ID)
	defer unlock()

	if _, err := s.Accounts.GetByID(ctx, fact.ID); err == nil {
		return nil // already applied
	} else if !isNotFound(err) {
		return err
	}

	account := &entity.Account{
		ID:              fact.ID,
		Email:           fact.Email,
		PhoneNumber:     fact.PhoneNumber,
		Role:            entity.Role(fact.Role),
		IsEmailVerified: true,
		PhotoID:         fact.PhotoID,
		CreatedBy:       string(entity.RoleReceptionist),
		UpdatedBy:       string(entity.RoleReceptionist),
	}
	if err := s.Accounts.Create(ctx, account); err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			return nil // concurrent redelivery already created it
		}
		return err
	}
	s.Logger.WithFields(logrus.Fields{"account_id": fact.ID, "role": fact.Role}).Info("account provisioned")
	return nil
}

// HandleAccountPhoneUpdated is an idempotent field overwrite from the profile
// service.
func (s *SyncService) HandleAccountPhoneUpdated(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.AccountFieldFact
	if err := env.DecodePayload(rabbitmq.KindAccountPhone, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()
	if err := s.Accounts.UpdatePhone(ctx, fact.AccountID, fact.Value); err != nil {
		return err
	}
	s.dropCachedAccount(ctx, fact.AccountID)
	return nil
}

func (s *SyncService) HandleAccountPhotoUpdated(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.AccountFieldFact
	if err := env.DecodePayload(rabbitmq.KindAccountPhoto, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()
	if err := s.Accounts.UpdatePhoto(ctx, fact.AccountID, fact.Value); err != nil {
		return err
	}
	s.dropCachedAccount(ctx, fact.AccountID)
	return nil
}

// HandleDoctorAdded binds a mirror row to an existing account. A fact for an
// unknown account fails with NotFound and creates nothing.
func (s *SyncService) HandleDoctorAdded(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.DoctorFact
	if err := env.DecodePayload(rabbitmq.KindDoctor, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()

	if _, err := s.Accounts.GetByID(ctx, fact.AccountID); err != nil {
		return err
	}
	return s.Doctors.Upsert(ctx, doctorFromFact(fact))
}

func (s *SyncService) HandleDoctorUpdated(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.DoctorFact
	if err := env.DecodePayload(rabbitmq.KindDoctor, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()
	return s.Doctors.Upsert(ctx, doctorFromFact(fact))
}

func (s *SyncService) HandleDoctorDeleted(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.DoctorFact
	if err := env.DecodePayload(rabbitmq.KindDoctor, &fact); err != nil {
		return err
	}
	return s.Doctors.Delete(ctx, fact.ID)
}

func (s *SyncService) HandleReceptionistAdded(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.ReceptionistFact
	if err := env.DecodePayload(rabbitmq.KindReceptionist, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()

	if _, err := s.Accounts.GetByID(ctx, fact.AccountID); err != nil {
		return err
	}
	return s.Receptionists.Upsert(ctx, receptionistFromFact(fact))
}

func (s *SyncService) HandleReceptionistUpdated(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.ReceptionistFact
	if err := env.DecodePayload(rabbitmq.KindReceptionist, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()
	return s.Receptionists.Upsert(ctx, receptionistFromFact(fact))
}

func (s *SyncService) HandleReceptionistDeleted(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.ReceptionistFact
	if err := env.DecodePayload(rabbitmq.KindReceptionist, &fact); err != nil {
		return err
	}
	return s.Receptionists.Delete(ctx, fact.ID)
}

func (s *SyncService) HandlePatientAdded(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.PatientFact
	if err := env.DecodePayload(rabbitmq.KindPatient, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()

	if _, err := s.Accounts.GetByID(ctx, fact.AccountID); err != nil {
		return err
	}
	return s.Patients.Upsert(ctx, patientFromFact(fact))
}

func (s *SyncService) HandlePatientUpdated(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.PatientFact
	if err := env.DecodePayload(rabbitmq.KindPatient, &fact); err != nil {
		return err
	}
	unlock := s.lockAccount(fact.AccountID)
	defer unlock()
	return s.Patients.Upsert(ctx, patientFromFact(fact))
}

func (s *SyncService) HandlePatientDeleted(ctx context.Context, env rabbitmq.Envelope) error {
	var fact rabbitmq.PatientFact
	if err := env.DecodePayload(rabbitmq.KindPatient, &fact); err != nil {
		return err
	}
	return s.Patients.Delete(ctx, fact.ID)
}

func doctorFromFact(f rabbitmq.DoctorFact) *entity.Doctor {
	return &entity.Doctor{
		ID:            f.ID,
		AccountID:     f.AccountID,
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		MiddleName:    f.MiddleName,
		CabinetNumber: f.CabinetNumber,
		Status:        f.Status,
	}
}

func receptionistFromFact(f rabbitmq.ReceptionistFact) *entity.Receptionist {
	return &entity.Receptionist{
		ID:         f.ID,
		AccountID:  f.AccountID,
		FirstName:  f.FirstName,
		LastName:   f.LastName,
		MiddleName: f.MiddleName,
		Status:     f.Status,
	}
}

func patientFromFact(f rabbitmq.PatientFact) *entity.Patient {
	return &entity.Patient{
		ID:         f.ID,
		AccountID:  f.AccountID,
		FirstName:  f.FirstName,
		LastName:   f.LastName,
		MiddleName: f.MiddleName,
	}
}

func isNotFound(err error) bool {
	var nf *apperrors.NotFoundError
	return errors.As(err, &nf)
}
