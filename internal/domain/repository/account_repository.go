package repository

import (
	"context"
	"time"

	"github.com/clinicore/authorization/internal/domain/entity"
)

// AccountRepository is the single source of truth for account records. Email
// uniqueness and the refresh-token compare-and-swap are enforced here, backed
// by the storage layer's native atomicity.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByRefreshToken(ctx context.Context, token string) (*entity.Account, error)
	GetAll(ctx context.Context) ([]*entity.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// SaveRefreshToken unconditionally replaces the stored refresh credential
	// (sign-in and registration).
	SaveRefreshToken(ctx context.Context, accountID, token string, expiry time.Time) error
	// ReplaceRefreshToken swaps the credential only if the stored token still
	// equals prev; returns false when another writer won the race.
	ReplaceRefreshToken(ctx context.Context, accountID, prev, next string, expiry time.Time) (bool, error)

	SetEmailVerified(ctx context.Context, accountID string) error
	UpdatePhone(ctx context.Context, accountID, phone string) error
	UpdatePhoto(ctx context.Context, accountID, photoID string) error
	Delete(ctx context.Context, accountID string) error
}
