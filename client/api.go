// Package client implements the browser-equivalent side of the auth
// slice: an API boundary over the JSON endpoints, tiered session
// persistence, an authentication state machine, and the route access
// guard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-shop-auth"
)

// UserInfo is the client-side view of the session user.
type UserInfo struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

// LoginResponse carries the server acknowledged session parameters.
type LoginResponse struct {
	User      UserInfo `json:"user"`
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"`
	Remember  bool     `json:"rememberMe"`
}

// API is the transport boundary the state machine talks through.
type API interface {
	Login(ctx context.Context, email, password string, remember bool) (*LoginResponse, error)
	RequestVerificationCode(ctx context.Context, email string) error
	CompleteRegistration(ctx context.Context, name, email, password, code string) error
	CurrentUser(ctx context.Context, token string) (*UserInfo, error)
	Logout(ctx context.Context, token string) error
}

// HTTPAPI implements API over net/http against the JSON endpoints.
type HTTPAPI struct {
	baseURL string
	client  *http.Client
	logger  auth.Logger
}

type HTTPAPIOption func(*HTTPAPI)

func WithHTTPClient(c *http.Client) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if c != nil {
			a.client = c
		}
	}
}

func WithAPILogger(l auth.Logger) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewHTTPAPI(baseURL string, opts ...HTTPAPIOption) *HTTPAPI {
	a := &HTTPAPI{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ API = (*HTTPAPI)(nil)

func (a *HTTPAPI) Login(ctx context.Context, email, password string, remember bool) (*LoginResponse, error) {
	body := map[string]any{
		"email":      email,
		"password":   password,
		"rememberMe": remember,
	}

	out := &LoginResponse{}
	if err := a.post(ctx, "/api/auth/login", "", body, http.StatusOK, out); err != nil {
		return nil, err
	}

	// Boundary validation: a session whose role the client does not
	// understand must never gate authorization decisions.
	if _, valid := auth.ParseRole(string(out.User.Role)); !valid {
		return nil, goerrors.New("server returned an unknown role", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"role": out.User.Role})
	}

	if out.Token == "" {
		return nil, goerrors.New("server returned an empty session token", goerrors.CategoryBadInput)
	}

	return out, nil
}

func (a *HTTPAPI) RequestVerificationCode(ctx context.Context, email string) error {
	body := map[string]any{"email": email}
	return a.post(ctx, "/api/auth/send-code", "", body, http.StatusOK, nil)
}

func (a *HTTPAPI) CompleteRegistration(ctx context.Context, name, email, password, code string) error {
	body := map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
		"code":     code,
	}
	return a.post(ctx, "/api/auth/complete-registration", "", body, http.StatusCreated, nil)
}

func (a *HTTPAPI) CurrentUser(ctx context.Context, token string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build session check request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := a.client.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "session check request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, apiError(res)
	}

	var payload struct {
		User *UserInfo `json:"user"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode session check response")
	}

	if payload.User == nil {
		return nil, nil
	}

	if _, valid := auth.ParseRole(string(payload.User.Role)); !valid {
		return nil, goerrors.New("server returned an unknown role", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"role": payload.User.Role})
	}

	return payload.User, nil
}

func (a *HTTPAPI) Logout(ctx context.Context, token string) error {
	return a.post(ctx, "/api/auth/logout", token, nil, http.StatusNoContent, nil)
}

func (a *HTTPAPI) post(ctx context.Context, path, token string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "request failed").
			WithMetadata(map[string]any{"path": path})
	}
	defer res.Body.Close()

	if res.StatusCode != wantStatus {
		a.logger.Debug("unexpected status for %s: %d", path, res.StatusCode)
		return apiError(res)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode response").
			WithMetadata(map[string]any{"path": path})
	}

	return nil
}

// apiError maps the JSON error envelope back onto the canonical errors
// so the state machine can branch on them.
func apiError(res *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(res.Body).Decode(&envelope)

	switch res.StatusCode {
	case http.StatusUnauthorized:
		return auth.ErrInvalidCredentials
	case http.StatusConflict:
		return auth.ErrAlreadyRegistered
	case http.StatusBadRequest:
		if envelope.Error == auth.ErrInvalidVerificationCode.Message {
			return auth.ErrInvalidVerificationCode
		}
		return goerrors.New(messageOrDefault(envelope.Error, "bad request"), goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	default:
		return goerrors.New(messageOrDefault(envelope.Error, "request failed"), goerrors.CategoryOperation).
			WithCode(res.StatusCode).
			WithMetadata(map[string]any{"status": res.StatusCode})
	}
}

func messageOrDefault(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var _ auth.Logger = noopLogger{}
