package application_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/clinicore/authorization/internal/domain/entity"
	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
	"github.com/clinicore/authorization/pkg/apperrors"
)

// In-memory doubles for the storage and broker boundaries.

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*entity.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: map[string]*entity.Account{}}
}

func cloneAccount(a *entity.Account) *entity.Account {
	c := *a
	return &c
}

func (r *memAccountRepo) Create(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return apperrors.NewConflictError("email already registered")
		}
	}
	if _, ok := r.accounts[a.ID]; ok {
		return apperrors.NewConflictError("account already exists")
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (r *memAccountRepo) GetByID(_ context.Context, id string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("account")
	}
	return cloneAccount(a), nil
}

func (r *memAccountRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (r *memAccountRepo) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, apperrors.NewNotFoundError("account")
}

func (r *memAccountRepo) GetByRefreshToken(_ context.Context, token string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token != "" {
		for _, a := range r.accounts {
			if a.RefreshToken == token {
				return cloneAccount(a), nil
			}
		}
	}
	return nil, apperrors.NewNotFoundError("account")
}

func (r *memAccountRepo) GetAll(_ context.Context) ([]*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, cloneAccount(a))
	}
	return out, nil
}

func (r *memAccountRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccountRepo) SaveRefreshToken(_ context.Context, accountID, token string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return apperrors.NewNotFoundError("account")
	}
	a.RefreshToken = token
	a.RefreshTokenExpiry = expiry
	return nil
}

func (r *memAccountRepo) ReplaceRefreshToken(_ context.Context, accountID, prev, next string, expiry time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.RefreshToken != prev {
		return false, nil
	}
	a.RefreshToken = next
	a.RefreshTokenExpiry = expiry
	return true, nil
}

func (r *memAccountRepo) SetEmailVerified(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return apperrors.NewNotFoundError("account")
	}
	a.IsEmailVerified = true
	return nil
}

func (r *memAccountRepo) UpdatePhone(_ context.Context, accountID, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return apperrors.NewNotFoundError("account")
	}
	a.PhoneNumber = phone
	return nil
}

func (r *memAccountRepo) UpdatePhoto(_ context.Context, accountID, photoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return apperrors.NewNotFoundError("account")
	}
	a.PhotoID = photoID
	return nil
}

func (r *memAccountRepo) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, accountID)
	return nil
}

type memDoctorRepo struct {
	mu      sync.Mutex
	doctors map[string]*entity.Doctor
}

func newMemDoctorRepo() *memDoctorRepo { return &memDoctorRepo{doctors: map[string]*entity.Doctor{}} }

func (r *memDoctorRepo) Upsert(_ context.Context, d *entity.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	r.doctors[d.ID] = &c
	return nil
}

func (r *memDoctorRepo) GetByID(_ context.Context, id string) (*entity.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("doctor")
	}
	c := *d
	return &c, nil
}

func (r *memDoctorRepo) GetByAccountID(_ context.Context, accountID string) (*entity.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.AccountID == accountID {
			c := *d
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("doctor")
}

func (r *memDoctorRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.doctors, id)
	return nil
}

type memReceptionistRepo struct {
	mu            sync.Mutex
	receptionists map[string]*entity.Receptionist
}

func newMemReceptionistRepo() *memReceptionistRepo {
	return &memReceptionistRepo{receptionists: map[string]*entity.Receptionist{}}
}

func (r *memReceptionistRepo) Upsert(_ context.Context, rec *entity.Receptionist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *rec
	r.receptionists[rec.ID] = &c
	return nil
}

func (r *memReceptionistRepo) GetByID(_ context.Context, id string) (*entity.Receptionist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receptionists[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("receptionist")
	}
	c := *rec
	return &c, nil
}

func (r *memReceptionistRepo) GetByAccountID(_ context.Context, accountID string) (*entity.Receptionist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.receptionists {
		if rec.AccountID == accountID {
			c := *rec
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("receptionist")
}

func (r *memReceptionistRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.receptionists, id)
	return nil
}

type memPatientRepo struct {
	mu       sync.Mutex
	patients map[string]*entity.Patient
}

func newMemPatientRepo() *memPatientRepo {
	return &memPatientRepo{patients: map[string]*entity.Patient{}}
}

func (r *memPatientRepo) Upsert(_ context.Context, p *entity.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	r.patients[p.ID] = &c
	return nil
}

func (r *memPatientRepo) GetByID(_ context.Context, id string) (*entity.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("patient")
	}
	c := *p
	return &c, nil
}

func (r *memPatientRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patients, id)
	return nil
}

type publishedFact struct {
	Queue   string
	Kind    rabbitmq.FactKind
	Payload any
}

// recordingPublisher captures outbound facts in order.
type recordingPublisher struct {
	mu    sync.Mutex
	facts []publishedFact
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, kind rabbitmq.FactKind, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.facts = append(p.facts, publishedFact{Queue: queue, Kind: kind, Payload: payload})
	return nil
}

func (p *recordingPublisher) byQueue(queue string) []publishedFact {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedFact
	for _, f := range p.facts {
		if f.Queue == queue {
			out = append(out, f)
		}
	}
	return out
}
