package auth

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

type RouteAuthenticator struct {
	auth                   Authenticator
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	Logger                 Logger
	ErrorHandler           func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		Logger:                 defLogger{},
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// Login authenticates the payload and, on success, sets the session
// cookie. The cookie lifetime follows the remember choice.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*LoginResult, error) {
	result, err := a.auth.Login(ctx.Context(), payload.GetEmail(), payload.GetPassword(), payload.GetRememberMe())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return nil, err
	}

	duration := a.cookieDuration
	if result.Remember {
		duration = a.extendedCookieDuration
	}

	a.setCookieToken(ctx, result.Token, duration)
	return result, nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// TokenFromRequest extracts the raw session token, preferring the cookie
// and falling back to the Authorization header.
func (a *RouteAuthenticator) TokenFromRequest(ctx router.Context) string {
	if token := ctx.Cookies(a.cfg.GetContextKey()); token != "" {
		return token
	}

	header := ctx.GetString(router.HeaderAuthorization, "")
	scheme := a.cfg.GetAuthScheme()
	if scheme == "" {
		scheme = "Bearer"
	}

	if header != "" && strings.HasPrefix(header, scheme+" ") {
		return strings.TrimSpace(strings.TrimPrefix(header, scheme+" "))
	}

	return ""
}

// SessionFromRequest resolves and validates the session carried by the
// request, without touching the response.
func (a *RouteAuthenticator) SessionFromRequest(ctx router.Context) (Session, error) {
	token := a.TokenFromRequest(ctx)
	if token == "" {
		return nil, ErrUnableToFindSession
	}

	return a.auth.SessionFromToken(token)
}

// ProtectedRoute validates the session and stores it in request locals
// under the configured context key. With optional set, requests without
// a valid session pass through unauthenticated.
func (a *RouteAuthenticator) ProtectedRoute(optional bool) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, err := a.SessionFromRequest(ctx)
			if err != nil {
				if optional {
					return hf(ctx)
				}

				var richErr *errors.Error
				if IsTokenExpiredError(err) {
					richErr = ErrTokenExpired
				} else if IsMalformedError(err) {
					richErr = ErrTokenMalformed
				} else if !errors.As(err, &richErr) {
					richErr = errors.Wrap(err, errors.CategoryAuth, "invalid authentication token").
						WithCode(errors.CodeUnauthorized)
				}

				return a.ErrorHandler(ctx, richErr)
			}

			ctx.Locals(a.cfg.GetContextKey(), session)
			ctx.SetContext(WithSessionContext(ctx.Context(), session))

			return hf(ctx)
		}
	}
}

// AdminRoute requires an authenticated admin session.
func (a *RouteAuthenticator) AdminRoute() router.MiddlewareFunc {
	protected := a.ProtectedRoute(false)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return protected(func(ctx router.Context) error {
			if !IsAdminSession(ctx, a.cfg.GetContextKey()) {
				return a.ErrorHandler(ctx, errors.New("admin access required", errors.CategoryAuthz).
					WithTextCode("FORBIDDEN").
					WithCode(errors.CodeForbidden))
			}
			return hf(ctx)
		})
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler: %s text_code=%s path=%s",
		richErr.Message,
		richErr.TextCode,
		c.OriginalURL(),
	)

	return respondError(c, richErr)
}
