package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type SendVerificationCodeMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Address to verify."`
	OnResponse func(resp *SendVerificationCodeResponse)
}

func (p SendVerificationCodeMessage) Type() string { return "auth.send_verification_code" }

type SendVerificationCodeResponse struct {
	User    *User
	Code    *VerificationCode
	Success bool
}

type SendVerificationCodeHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

func NewSendVerificationCodeHandler(repo RepositoryManager, mailer Mailer) *SendVerificationCodeHandler {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &SendVerificationCodeHandler{
		repo:   repo,
		mailer: mailer,
		logger: defLogger{},
	}
}

func (h *SendVerificationCodeHandler) WithLogger(l Logger) *SendVerificationCodeHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *SendVerificationCodeHandler) Execute(ctx context.Context, event SendVerificationCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification code request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SendVerificationCodeHandler) execute(ctx context.Context, event SendVerificationCodeMessage) error {
	resp := &SendVerificationCodeResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)
	if email == "" {
		return ErrNoEmptyString
	}

	now := time.Now()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().EnsureShellTx(ctx, tx, email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user for verification")
		}

		code, err := h.repo.VerificationCodes().ReplaceForUserTx(ctx, tx, user, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification code")
		}

		resp.User = user
		resp.Code = code
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification code transaction failed")
	}

	// Delivery happens after commit. If it fails the stored code stays
	// redeemable, so a retried request replaces rather than orphans it.
	if err := h.mailer.Send(ctx, email, "Your verification code", verificationEmailBody(resp.Code)); err != nil {
		h.logger.Error("verification code delivery failed for %s: %v", email, err)
		return goerrors.Wrap(err, ErrDeliveryFailed.Category, ErrDeliveryFailed.Message).
			WithTextCode(ErrDeliveryFailed.TextCode)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func verificationEmailBody(code *VerificationCode) string {
	return fmt.Sprintf(
		"Your verification code is %s. It expires in %d minutes.",
		code.Code,
		int(VerificationCodeTTL.Minutes()),
	)
}
