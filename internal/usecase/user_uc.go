package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user operations used by the admin flows.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, email, fullName string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, tm: tm, log: logger}
}

// RegisterOrFetch returns the existing user for the email or creates one.
// The find and save run in one transaction to avoid duplicate inserts racing.
func (u *userUC) RegisterOrFetch(ctx context.Context, email, fullName string) (*model.User, error) {
	var user *model.User
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.users.FindByEmail(ctx, tx, email)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		nu, err := model.NewUser(uuid.NewString(), email, fullName)
		if err != nil {
			return err
		}
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		user = nu
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.users.FindByEmail(ctx, repository.NoTX, email)
}

func (u *userUC) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	return u.users.List(ctx, repository.NoTX, offset, limit)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	return u.users.CountUsers(ctx, repository.NoTX)
}
