package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerificationCodes interface {
	repository.Repository[*VerificationCode]

	GetValid(ctx context.Context, email, code string, now time.Time) (*VerificationCode, error)
	GetValidTx(ctx context.Context, tx bun.IDB, email, code string, now time.Time) (*VerificationCode, error)

	ReplaceForUser(ctx context.Context, user *User, now time.Time) (*VerificationCode, error)
	ReplaceForUserTx(ctx context.Context, tx bun.IDB, user *User, now time.Time) (*VerificationCode, error)

	Consume(ctx context.Context, id uuid.UUID) error
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type verificationCodes struct {
	repository.Repository[*VerificationCode]
	db *bun.DB
}

var (
	_ VerificationCodes = (*verificationCodes)(nil)
)

func NewVerificationCodesRepository(db *bun.DB) VerificationCodes {
	repo := repository.NewRepository[*VerificationCode](db, repository.ModelHandlers[*VerificationCode]{
		NewRecord: func() *VerificationCode { return &VerificationCode{} },
		GetID: func(c *VerificationCode) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *VerificationCode, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &verificationCodes{
		Repository: repo,
		db:         db,
	}
}

func (a *verificationCodes) GetValid(ctx context.Context, email, code string, now time.Time) (*VerificationCode, error) {
	return a.GetValidTx(ctx, a.db, email, code, now)
}

// GetValidTx loads the unexpired code matching the email and code pair.
// Expiry is checked in the query with the same exclusive boundary as
// VerificationCode.IsExpired.
func (a *verificationCodes) GetValidTx(ctx context.Context, tx bun.IDB, email, code string, now time.Time) (*VerificationCode, error) {
	email = NormalizeEmail(email)

	record := &VerificationCode{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.code = ?", code).
		Where("?TableAlias.expires_at > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *verificationCodes) ReplaceForUser(ctx context.Context, user *User, now time.Time) (*VerificationCode, error) {
	return a.ReplaceForUserTx(ctx, a.db, user, now)
}

// ReplaceForUserTx deletes any outstanding codes for the user's email and
// stores a fresh one, keeping at most one redeemable code per address.
func (a *verificationCodes) ReplaceForUserTx(ctx context.Context, tx bun.IDB, user *User, now time.Time) (*VerificationCode, error) {
	_, err := tx.NewDelete().
		Model((*VerificationCode)(nil)).
		Where("?TableAlias.email = ?", user.Email).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, NewVerificationCode(user, now))
}

func (a *verificationCodes) Consume(ctx context.Context, id uuid.UUID) error {
	return a.ConsumeTx(ctx, a.db, id)
}

// ConsumeTx deletes a redeemed code. A zero row count means another
// request consumed it first, which callers must treat as an invalid code.
func (a *verificationCodes) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*VerificationCode)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}
