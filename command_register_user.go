package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RegisterUserMessage creates a registered user directly, skipping email
// verification. Meant for seeding and operator tooling rather than the
// public signup flow.
type RegisterUserMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Customer email."`
	Name       string `json:"name" example:"Pepe Rone" doc:"Display name."`
	Password   string `json:"password" doc:"Cleartext password to digest and store."`
	Role       Role   `json:"role" example:"USER" doc:"Role to assign, defaults to USER."`
	OnResponse func(resp *RegisterUserResponse)
}

func (p RegisterUserMessage) Type() string { return "auth.register_user" }

type RegisterUserResponse struct {
	User    *User
	Success bool
}

type RegisterUserHandler struct {
	repo RepositoryManager
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{repo: repo}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)

	if event.Role != "" && !IsValidRole(event.Role) {
		return goerrors.New("unknown or invalid role", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"role": event.Role})
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Users().GetByEmailTx(ctx, tx, email)
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing user")
		}

		if existing.IsRegistered() {
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

		// Promote an existing shell in place instead of inserting a
		// duplicate email.
		if existing != nil {
			updated, err := h.repo.Users().CompleteRegistrationTx(ctx, tx, existing.ID, event.Name, hash)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to promote user shell")
			}
			resp.User = updated
			return nil
		}

		user := &User{
			Email:        email,
			Name:         event.Name,
			PasswordHash: hash,
			Role:         event.Role,
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		resp.User = user
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
