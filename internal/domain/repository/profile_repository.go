package repository

import (
	"context"

	"github.com/clinicore/authorization/internal/domain/entity"
)

// Mirror-row repositories for sub-profiles synced from the profile service.
// Creation is lookup-or-create keyed by the upstream id, so redelivered facts
// never produce duplicate rows.

type DoctorRepository interface {
	Upsert(ctx context.Context, d *entity.Doctor) error
	GetByID(ctx context.Context, id string) (*entity.Doctor, error)
	GetByAccountID(ctx context.Context, accountID string) (*entity.Doctor, error)
	Delete(ctx context.Context, id string) error
}

type ReceptionistRepository interface {
	Upsert(ctx context.Context, r *entity.Receptionist) error
	GetByID(ctx context.Context, id string) (*entity.Receptionist, error)
	GetByAccountID(ctx context.Context, accountID string) (*entity.Receptionist, error)
	Delete(ctx context.Context, id string) error
}

type PatientRepository interface {
	Upsert(ctx context.Context, p *entity.Patient) error
	GetByID(ctx context.Context, id string) (*entity.Patient, error)
	Delete(ctx context.Context, id string) error
}
