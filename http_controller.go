package auth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// HTTPAuthenticator is the surface the controller needs from the
// cookie-aware authenticator.
type HTTPAuthenticator interface {
	Login(ctx router.Context, payload LoginPayload) (*LoginResult, error)
	Logout(ctx router.Context)
	SessionFromRequest(ctx router.Context) (Session, error)
	ProtectedRoute(optional bool) router.MiddlewareFunc
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register")

	app.Post(controller.Routes.SendCode, controller.SendCodePost).
		SetName("auth.send-code")

	app.Post(controller.Routes.CompleteRegistration, controller.CompleteRegistrationPost).
		SetName("auth.complete-registration")

	app.Get(controller.Routes.Me, controller.MeGet).
		SetName("auth.me")
}

type AuthControllerRoutes struct {
	Login                string
	Logout               string
	Register             string
	SendCode             string
	CompleteRegistration string
	Me                   string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Routes   *AuthControllerRoutes
	Auther   HTTPAuthenticator
	Identity Authenticator
	Mailer   Mailer
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Mailer: LogMailer{},
		Routes: &AuthControllerRoutes{
			Login:                "/api/auth/login",
			Logout:               "/api/auth/logout",
			Register:             "/api/auth/register",
			SendCode:             "/api/auth/send-code",
			CompleteRegistration: "/api/auth/complete-registration",
			Me:                   "/api/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Identity == nil {
		panic("Missing Authenticator in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerAuthenticator(auth Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Identity = auth
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if mailer != nil {
			c.Mailer = mailer
		}
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"rememberMe"`
}

// GetEmail returns the email
func (r LoginRequest) GetEmail() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetRememberMe returns the remember choice
func (r LoginRequest) GetRememberMe() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return respondValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	result, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"user":       identityPayload(result.Identity),
		"token":      result.Token,
		"expiresIn":  result.ExpiresIn,
		"rememberMe": result.Remember,
	})
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Status(router.StatusNoContent).SendString("")
}

// MeGet reports the current session user. An absent or broken token is
// an anonymous state, never an error, so the status is always 200.
func (a *AuthController) MeGet(ctx router.Context) error {
	session, err := a.Auther.SessionFromRequest(ctx)
	if err != nil {
		return ctx.JSON(router.StatusOK, router.ViewContext{"user": nil})
	}

	identity, err := a.Identity.IdentityFromSession(ctx.Context(), session)
	if err != nil {
		a.Logger.Warn("session user lookup failed: %v", err)
		return ctx.JSON(router.StatusOK, router.ViewContext{"user": nil})
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"user": identityPayload(identity),
	})
}

// SendCodeRequest payload
type SendCodeRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r SendCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) SendCodePost(ctx router.Context) error {
	payload := new(SendCodeRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("send code parse payload: %v", err)
		return respondValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(ctx, err)
	}

	sendCode := NewSendVerificationCodeHandler(a.Repo, a.Mailer).WithLogger(a.Logger)

	req := SendVerificationCodeMessage{Email: payload.Email}
	if err := sendCode.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("send verification code error: %v", err)
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Verification code sent",
	})
}

// CompleteRegistrationRequest payload
type CompleteRegistrationRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Code     string `form:"code" json:"code"`
}

// Validate will validate the payload
func (r CompleteRegistrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func (a *AuthController) CompleteRegistrationPost(ctx router.Context) error {
	payload := new(CompleteRegistrationRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("complete registration parse payload: %v", err)
		return respondValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(ctx, err)
	}

	completeRegistration := NewCompleteRegistrationHandler(a.Repo)

	req := CompleteRegistrationMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Code:     payload.Code,
	}

	if err := completeRegistration.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("complete registration error: %v", err)
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, router.ViewContext{
		"success": true,
		"message": "Registration complete",
	})
}

// RegisterRequest is the direct registration payload
type RegisterRequest struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirmPassword"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return respondValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(ctx, err)
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: %v", err)
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, router.ViewContext{
		"user": userPayload(res.User),
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}

func identityPayload(identity Identity) router.ViewContext {
	if identity == nil {
		return nil
	}
	return router.ViewContext{
		"id":    identity.ID(),
		"name":  identity.Name(),
		"email": identity.Email(),
		"role":  identity.Role(),
	}
}

func userPayload(user *User) router.ViewContext {
	if user == nil {
		return nil
	}

	payload := router.ViewContext{
		"id":    user.ID.String(),
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	}

	if user.CreatedAt != nil {
		payload["createdAt"] = user.CreatedAt.Format(time.RFC3339)
	}

	return payload
}

// respondValidationError maps bind and validation failures to a 400 with
// per-field detail where ozzo provides it.
func respondValidationError(ctx router.Context, err error) error {
	body := router.ViewContext{"error": "Invalid request payload"}

	var fieldErrs validation.Errors
	if goerrors.As(err, &fieldErrs) {
		details := map[string]string{}
		for field, ferr := range fieldErrs {
			details[field] = ferr.Error()
		}
		body["details"] = details
	}

	return ctx.JSON(router.StatusBadRequest, body)
}

// respondError converts rich errors into the JSON error envelope. Only
// client-safe categories expose their message; everything else reduces
// to a generic one.
func respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	message := richErr.Message
	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation,
		goerrors.CategoryConflict, goerrors.CategoryBadInput:
	default:
		message = "An unexpected error occurred"
	}

	return ctx.JSON(status, router.ViewContext{"error": message})
}
