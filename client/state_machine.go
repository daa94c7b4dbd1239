package client

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-shop-auth"
)

// State is the client's authentication lifecycle state.
type State string

const (
	StateAnonymous           State = "anonymous"
	StatePendingVerification State = "pending_verification"
	StateAuthenticated       State = "authenticated"
	StateLoggedOut           State = "logged_out"
)

// Operation names the async operations tracked by the machine.
type Operation string

const (
	OpLogin                Operation = "login"
	OpRequestCode          Operation = "request_code"
	OpCompleteRegistration Operation = "complete_registration"
	OpHydrate              Operation = "hydrate"
)

// Status is the lifecycle of a single request.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// RequestState is the observable progress of one operation.
type RequestState struct {
	Status Status
	Err    error
}

// Session is the in-memory authenticated session.
type Session struct {
	UserID    string
	Name      string
	Email     string
	Role      auth.Role
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Tier      Tier
}

// ErrInvalidStateTransition is returned when a lifecycle move is not in
// the transition table.
var ErrInvalidStateTransition = goerrors.New("invalid auth state transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_AUTH_STATE_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// Machine drives the client authentication lifecycle. All dependencies
// are injected; there are no package-level singletons.
type Machine struct {
	mu          sync.Mutex
	state       State
	session     *Session
	requests    map[Operation]*RequestState
	generations map[Operation]uint64
	transitions map[State]map[State]struct{}

	api    API
	store  *Adapter
	logger auth.Logger
	now    func() time.Time
}

type MachineOption func(*Machine)

// WithMachineClock injects a custom clock (useful for tests).
func WithMachineClock(clock func() time.Time) MachineOption {
	return func(m *Machine) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithMachineLogger overrides the logger.
func WithMachineLogger(logger auth.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMachine(api API, store *Adapter, opts ...MachineOption) *Machine {
	m := &Machine{
		state:       StateAnonymous,
		requests:    map[Operation]*RequestState{},
		generations: map[Operation]uint64{},
		transitions: map[State]map[State]struct{}{
			StateAnonymous: {
				StatePendingVerification: {},
				StateAuthenticated:       {},
			},
			StatePendingVerification: {
				StateAuthenticated: {},
				StateAnonymous:     {},
			},
			StateAuthenticated: {
				StateLoggedOut: {},
			},
			StateLoggedOut: {
				StateAnonymous: {},
			},
		},
		api:    api,
		store:  store,
		logger: noopLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session, nil when anonymous.
func (m *Machine) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}

	copied := *m.session
	return &copied
}

// RequestState reports the progress of an operation.
func (m *Machine) RequestState(op Operation) RequestState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rs, ok := m.requests[op]; ok {
		return *rs
	}
	return RequestState{Status: StatusIdle}
}

// begin marks an operation pending and bumps its generation. A response
// whose generation no longer matches was superseded and must be dropped.
func (m *Machine) begin(op Operation) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generations[op]++
	m.requests[op] = &RequestState{Status: StatusPending}
	return m.generations[op]
}

// settle records the outcome of an operation unless it was superseded.
// The apply callback runs under the lock with the machine still current.
func (m *Machine) settle(op Operation, generation uint64, err error, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generations[op] != generation {
		m.logger.Debug("discarding stale %s response (generation %d)", op, generation)
		return false
	}

	if err != nil {
		m.requests[op] = &RequestState{Status: StatusFailed, Err: err}
		return true
	}

	if apply != nil {
		apply()
	}
	m.requests[op] = &RequestState{Status: StatusSucceeded}
	return true
}

// transitionTo validates the move against the table. Callers hold the lock.
func (m *Machine) transitionTo(to State) error {
	if m.state == to {
		return nil
	}

	if _, ok := m.transitions[m.state][to]; !ok {
		return goerrors.Wrap(ErrInvalidStateTransition, goerrors.CategoryValidation, "invalid auth state transition").
			WithMetadata(map[string]any{"from": m.state, "to": to})
	}

	m.logger.Debug("auth state %s -> %s", m.state, to)
	m.state = to
	return nil
}

// Login authenticates and persists the session. The server acknowledged
// remember flag wins over the requested one.
func (m *Machine) Login(ctx context.Context, email, password string, remember bool) error {
	generation := m.begin(OpLogin)

	res, err := m.api.Login(ctx, email, password, remember)
	if err != nil {
		m.settle(OpLogin, generation, err, nil)
		return err
	}

	if res.Remember != remember {
		m.logger.Warn("server acknowledged rememberMe=%t, requested %t; using server value", res.Remember, remember)
	}

	now := m.now()
	tier := TierFor(res.Remember)
	session := &Session{
		UserID:    res.User.ID,
		Name:      res.User.Name,
		Email:     res.User.Email,
		Role:      res.User.Role,
		Token:     res.Token,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(res.ExpiresIn) * time.Second),
		Tier:      tier,
	}

	var terr error
	applied := m.settle(OpLogin, generation, nil, func() {
		// Login may arrive from pending verification after registering.
		if terr = m.transitionTo(StateAuthenticated); terr != nil {
			return
		}
		m.session = session

		// Storage writes stay behind the generation check: a superseded
		// login must not touch either tier.
		if serr := m.store.Save(&Artifacts{
			Token:     session.Token,
			IssuedAt:  session.IssuedAt,
			ExpiresAt: session.ExpiresAt,
			Role:      session.Role,
			Remember:  res.Remember,
		}, tier); serr != nil {
			m.logger.Warn("failed to persist session artifacts: %v", serr)
		}
	})

	if !applied {
		return nil
	}
	return terr
}

// RequestVerificationCode asks the server to email a registration code.
func (m *Machine) RequestVerificationCode(ctx context.Context, email string) error {
	generation := m.begin(OpRequestCode)

	err := m.api.RequestVerificationCode(ctx, email)
	var terr error
	m.settle(OpRequestCode, generation, err, func() {
		if m.state == StateAnonymous {
			terr = m.transitionTo(StatePendingVerification)
		}
	})

	if err != nil {
		return err
	}
	return terr
}

// CompleteRegistration redeems a verification code. The machine stays in
// pending verification; the caller logs in to become authenticated.
func (m *Machine) CompleteRegistration(ctx context.Context, name, email, password, code string) error {
	generation := m.begin(OpCompleteRegistration)

	err := m.api.CompleteRegistration(ctx, name, email, password, code)
	m.settle(OpCompleteRegistration, generation, err, nil)
	return err
}

// Logout clears the in-memory session and both persistence tiers. The
// server call is best effort; local state always resets.
func (m *Machine) Logout(ctx context.Context) error {
	var token string
	if s := m.Session(); s != nil {
		token = s.Token
	}

	if token != "" {
		if err := m.api.Logout(ctx, token); err != nil {
			m.logger.Warn("server logout failed: %v", err)
		}
	}

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear session artifacts: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	if m.state == StateAuthenticated {
		if err := m.transitionTo(StateLoggedOut); err != nil {
			return err
		}
	}
	return m.transitionTo(StateAnonymous)
}

// Hydrate restores a persisted session in the background. It never
// blocks the caller; done, when non-nil, receives the outcome.
func (m *Machine) Hydrate(ctx context.Context, done func(error)) {
	generation := m.begin(OpHydrate)

	go func() {
		err := m.hydrate(ctx, generation)
		if done != nil {
			done(err)
		}
	}()
}

func (m *Machine) hydrate(ctx context.Context, generation uint64) error {
	artifacts, tier, err := m.store.LoadValid()
	if err != nil {
		m.settle(OpHydrate, generation, err, nil)
		return err
	}

	if artifacts == nil {
		m.settle(OpHydrate, generation, nil, nil)
		return nil
	}

	user, err := m.api.CurrentUser(ctx, artifacts.Token)
	if err != nil {
		m.settle(OpHydrate, generation, err, nil)
		return err
	}

	// The server no longer recognizes the token; drop the artifacts so
	// the next hydrate does not retry a dead session. The clear sits
	// behind the generation check like every other storage write.
	if user == nil {
		m.settle(OpHydrate, generation, nil, func() {
			if cerr := m.store.Clear(); cerr != nil {
				m.logger.Warn("failed to clear rejected session artifacts: %v", cerr)
			}
		})
		return nil
	}

	session := &Session{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Token:     artifacts.Token,
		IssuedAt:  artifacts.IssuedAt,
		ExpiresAt: artifacts.ExpiresAt,
		Tier:      tier,
	}

	var terr error
	m.settle(OpHydrate, generation, nil, func() {
		if terr = m.transitionTo(StateAuthenticated); terr == nil {
			m.session = session
		}
	})

	return terr
}
