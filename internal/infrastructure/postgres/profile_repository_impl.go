package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/authorization/internal/domain/entity"
	"github.com/clinicore/authorization/internal/domain/repository"
	"github.com/clinicore/authorization/pkg/apperrors"
)

// Mirror-row stores. All writes come from the inbound sync path; upserts key
// on the upstream id so redelivered facts are no-ops.

type DoctorRepository struct {
	pool *pgxpool.Pool
}

func NewDoctorRepository(pool *pgxpool.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) Upsert(ctx context.Context, d *entity.Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, account_id, first_name, last_name, middle_name, cabinet_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			middle_name = EXCLUDED.middle_name,
			cabinet_number = EXCLUDED.cabinet_number,
			status = EXCLUDED.status
	`, d.ID, d.AccountID, d.FirstName, d.LastName, d.MiddleName, d.CabinetNumber, d.Status)
	return err
}

func (r *DoctorRepository) GetByID(ctx context.Context, id string) (*entity.Doctor, error) {
	d := &entity.Doctor{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, first_name, last_name, middle_name, cabinet_number, status
		FROM doctors WHERE id = $1
	`, id).Scan(&d.ID, &d.AccountID, &d.FirstName, &d.LastName, &d.MiddleName, &d.CabinetNumber, &d.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("doctor")
		}
		return nil, err
	}
	return d, nil
}

func (r *DoctorRepository) GetByAccountID(ctx context.Context, accountID string) (*entity.Doctor, error) {
	d := &entity.Doctor{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, first_name, last_name, middle_name, cabinet_number, status
		FROM doctors WHERE account_id = $1
	`, accountID).Scan(&d.ID, &d.AccountID, &d.FirstName, &d.LastName, &d.MiddleName, &d.CabinetNumber, &d.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("doctor")
		}
		return nil, err
	}
	return d, nil
}

func (r *DoctorRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	return err
}

type ReceptionistRepository struct {
	pool *pgxpool.Pool
}

func NewReceptionistRepository(pool *pgxpool.Pool) *ReceptionistRepository {
	return &ReceptionistRepository{pool: pool}
}

func (r *ReceptionistRepository) Upsert(ctx context.Context, rec *entity.Receptionist) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO receptionists (id, account_id, first_name, last_name, middle_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			middle_name = EXCLUDED.middle_name,
			status = EXCLUDED.status
	`, rec.ID, rec.AccountID, rec.FirstName, rec.LastName, rec.MiddleName, rec.Status)
	return err
}

func (r *ReceptionistRepository) GetByID(ctx context.Context, id string) (*entity.Receptionist, error) {
	rec := &entity.Receptionist{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, first_name, last_name, middle_name, status
		FROM receptionists WHERE id = $1
	`, id).Scan(&rec.ID, &rec.AccountID, &rec.FirstName, &rec.LastName, &rec.MiddleName, &rec.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("receptionist")
		}
		return nil, err
	}
	return rec, nil
}

func (r *ReceptionistRepository) GetByAccountID(ctx context.Context, accountID string) (*entity.Receptionist, error) {
	rec := &entity.Receptionist{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, first_name, last_name, middle_name, status
		FROM receptionists WHERE account_id = $1
	`, accountID).Scan(&rec.ID, &rec.AccountID, &rec.FirstName, &rec.LastName, &rec.MiddleName, &rec.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("receptionist")
		}
		return nil, err
	}
	return rec, nil
}

func (r *ReceptionistRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM receptionists WHERE id = $1`, id)
	return err
}

type PatientRepository struct {
	pool *pgxpool.Pool
}

func NewPatientRepository(pool *pgxpool.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

func (r *PatientRepository) Upsert(ctx context.Context, p *entity.Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, account_id, first_name, last_name, middle_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			middle_name = EXCLUDED.middle_name
	`, p.ID, p.AccountID, p.FirstName, p.LastName, p.MiddleName)
	return err
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*entity.Patient, error) {
	p := &entity.Patient{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, first_name, last_name, middle_name
		FROM patients WHERE id = $1
	`, id).Scan(&p.ID, &p.AccountID, &p.FirstName, &p.LastName, &p.MiddleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("patient")
		}
		return nil, err
	}
	return p, nil
}

func (r *PatientRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

var (
	_ repository.DoctorRepository       = (*DoctorRepository)(nil)
	_ repository.ReceptionistRepository = (*ReceptionistRepository)(nil)
	_ repository.PatientRepository      = (*PatientRepository)(nil)
)
