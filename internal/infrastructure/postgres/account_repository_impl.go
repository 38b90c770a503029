package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/authorization/internal/domain/entity"
	"github.com/clinicore/authorization/internal/domain/repository"
	"github.com/clinicore/authorization/pkg/apperrors"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, phone_number, role, is_email_verified,
	photo_id, refresh_token, refresh_token_expiry, created_at, created_by, updated_at, updated_by`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	a := &entity.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.PhoneNumber, &a.Role, &a.IsEmailVerified,
		&a.PhotoID, &a.RefreshToken, &a.RefreshTokenExpiry, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("account")
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	a.Email = strings.ToLower(a.Email)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, phone_number, role, is_email_verified,
			photo_id, refresh_token, refresh_token_expiry, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.PasswordHash, a.PhoneNumber, a.Role, a.IsEmailVerified,
		a.PhotoID, a.RefreshToken, a.RefreshTokenExpiry, a.CreatedBy)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.NewConflictError("email already registered")
		}
		return err
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = lower($1)`, email))
}

func (r *AccountRepository) GetByRefreshToken(ctx context.Context, token string) (*entity.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE refresh_token = $1`, token))
}

func (r *AccountRepository) GetAll(ctx context.Context) ([]*entity.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]*entity.Account, error) {
	var out []*entity.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = lower($1))`, email).Scan(&exists)
	return exists, err
}

func (r *AccountRepository) SaveRefreshToken(ctx context.Context, accountID, token string, expiry time.Time) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET refresh_token = $1, refresh_token_expiry = $2, updated_at = now(), updated_by = id::text
		WHERE id = $3
	`, token, expiry, accountID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("account")
	}
	return nil
}

// ReplaceRefreshToken is the commit point of token rotation: the WHERE clause
// on the previous token value makes concurrent refreshes race safely, with
// exactly one winner.
func (r *AccountRepository) ReplaceRefreshToken(ctx context.Context, accountID, prev, next string, expiry time.Time) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET refresh_token = $1, refresh_token_expiry = $2, updated_at = now(), updated_by = id::text
		WHERE id = $3 AND refresh_token = $4
	`, next, expiry, accountID, prev)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

// SetEmailVerified only flips false to true; the flag never reverts.
func (r *AccountRepository) SetEmailVerified(ctx context.Context, accountID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE accounts SET is_email_verified = TRUE, updated_at = now() WHERE id = $1
	`, accountID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("account")
	}
	return nil
}

func (r *AccountRepository) UpdatePhone(ctx context.Context, accountID, phone string) error {
	return r.updateField(ctx, accountID, "phone_number", phone)
}

func (r *AccountRepository) UpdatePhoto(ctx context.Context, accountID, photoID string) error {
	return r.updateField(ctx, accountID, "photo_id", photoID)
}

func (r *AccountRepository) updateField(ctx context.Context, accountID, column, value string) error {
	res, err := r.pool.Exec(ctx,
		`UPDATE accounts SET `+column+` = $1, updated_at = now() WHERE id = $2`, value, accountID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("account")
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, accountID string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("account")
	}
	return nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
