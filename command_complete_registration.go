package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CompleteRegistrationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Address being registered."`
	Code       string `json:"code" example:"394502" doc:"Verification code from the email."`
	Name       string `json:"name" example:"Pepe Rone" doc:"Display name."`
	Password   string `json:"password" doc:"Cleartext password to digest and store."`
	OnResponse func(resp *CompleteRegistrationResponse)
}

func (p CompleteRegistrationMessage) Type() string { return "auth.complete_registration" }

type CompleteRegistrationResponse struct {
	User    *User
	Success bool
}

type CompleteRegistrationHandler struct {
	repo RepositoryManager
}

func NewCompleteRegistrationHandler(repo RepositoryManager) *CompleteRegistrationHandler {
	return &CompleteRegistrationHandler{repo: repo}
}

func (h *CompleteRegistrationHandler) Execute(ctx context.Context, event CompleteRegistrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteRegistrationHandler) execute(ctx context.Context, event CompleteRegistrationMessage) error {
	resp := &CompleteRegistrationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)
	now := time.Now()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		code, err := h.repo.VerificationCodes().GetValidTx(ctx, tx, email, event.Code, now)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidVerificationCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load verification code")
		}

		user, err := h.repo.Users().GetByEmailTx(ctx, tx, email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for registration")
		}

		if user.IsRegistered() {
			return ErrAlreadyRegistered
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		updated, err := h.repo.Users().CompleteRegistrationTx(ctx, tx, user.ID, event.Name, hash)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist registration")
		}

		// A concurrent submission may have consumed the code between the
		// select and here; the delete settles who wins.
		if err := h.repo.VerificationCodes().ConsumeTx(ctx, tx, code.ID); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidVerificationCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification code")
		}

		resp.User = updated
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "registration completion transaction failed")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
