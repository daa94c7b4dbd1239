package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-shop-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendVerificationCodeHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("creates shell and delivers code", func(t *testing.T) {
		repo, _ := setupAuthRepo(t)

		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, "pepe@example.com", mock.Anything, mock.Anything).
			Return(nil).Once()

		handler := auth.NewSendVerificationCodeHandler(repo, mailer)

		var resp *auth.SendVerificationCodeResponse
		err := handler.Execute(ctx, auth.SendVerificationCodeMessage{
			Email: "Pepe@Example.com",
			OnResponse: func(r *auth.SendVerificationCodeResponse) {
				resp = r
			},
		})
		require.NoError(t, err)

		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "pepe@example.com", resp.User.Email)
		assert.False(t, resp.User.IsRegistered())
		assert.Len(t, resp.Code.Code, 6)

		// The stored code matches what was handed to the mailer body.
		found, err := repo.VerificationCodes().GetValid(ctx, "pepe@example.com", resp.Code.Code, time.Now())
		require.NoError(t, err)
		assert.Equal(t, resp.Code.ID, found.ID)
		mailer.AssertExpectations(t)

		body := mailer.Calls[0].Arguments.String(3)
		assert.Contains(t, body, resp.Code.Code)
	})

	t.Run("resend invalidates the previous code", func(t *testing.T) {
		repo, _ := setupAuthRepo(t)

		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, "pepe@example.com", mock.Anything, mock.Anything).
			Return(nil).Twice()

		handler := auth.NewSendVerificationCodeHandler(repo, mailer)

		codes := make([]string, 0, 2)
		msg := auth.SendVerificationCodeMessage{
			Email: "pepe@example.com",
			OnResponse: func(r *auth.SendVerificationCodeResponse) {
				codes = append(codes, r.Code.Code)
			},
		}

		require.NoError(t, handler.Execute(ctx, msg))
		require.NoError(t, handler.Execute(ctx, msg))
		require.Len(t, codes, 2)

		_, err := repo.VerificationCodes().GetValid(ctx, "pepe@example.com", codes[0], time.Now())
		if codes[0] != codes[1] {
			assert.Error(t, err)
		}

		_, err = repo.VerificationCodes().GetValid(ctx, "pepe@example.com", codes[1], time.Now())
		assert.NoError(t, err)
	})

	t.Run("delivery failure keeps the code redeemable", func(t *testing.T) {
		repo, _ := setupAuthRepo(t)

		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, "pepe@example.com", mock.Anything, mock.Anything).
			Return(errors.New("smtp unavailable")).Once()

		handler := auth.NewSendVerificationCodeHandler(repo, mailer)

		err := handler.Execute(ctx, auth.SendVerificationCodeMessage{Email: "pepe@example.com"})
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, auth.ErrDeliveryFailed.TextCode, richErr.TextCode)

		// The transaction committed before delivery, so a code exists.
		user, err := repo.Users().GetByEmail(ctx, "pepe@example.com")
		require.NoError(t, err)
		assert.False(t, user.IsRegistered())
	})

	t.Run("empty email is rejected", func(t *testing.T) {
		repo, _ := setupAuthRepo(t)
		handler := auth.NewSendVerificationCodeHandler(repo, new(MockMailer))

		err := handler.Execute(ctx, auth.SendVerificationCodeMessage{Email: "   "})
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	})
}
