package client

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-shop-auth"
)

// Tier names a persistence tier for session artifacts.
type Tier string

const (
	// TierEphemeral survives only the current process.
	TierEphemeral Tier = "ephemeral"
	// TierDurable survives restarts, used for remember-me sessions.
	TierDurable Tier = "durable"
)

// Artifacts is the persisted session layout.
type Artifacts struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"token_expiration"`
	Role      auth.Role `json:"role"`
	Remember  bool      `json:"remember"`
}

// IsExpired uses the same exclusive boundary as the server: artifacts at
// exactly ExpiresAt are already expired.
func (a *Artifacts) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// TierStore persists artifacts for a single tier. Load returns
// (nil, nil) when the tier is empty.
type TierStore interface {
	Load() (*Artifacts, error)
	Save(artifacts *Artifacts) error
	Clear() error
}

// Adapter routes session artifacts to the right tier and owns the
// invariant that at most one tier holds a session at a time.
type Adapter struct {
	ephemeral TierStore
	durable   TierStore
	logger    auth.Logger
	now       func() time.Time
}

type AdapterOption func(*Adapter)

func WithAdapterLogger(l auth.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithAdapterClock(clock func() time.Time) AdapterOption {
	return func(a *Adapter) {
		if clock != nil {
			a.now = clock
		}
	}
}

func NewAdapter(ephemeral, durable TierStore, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		ephemeral: ephemeral,
		durable:   durable,
		logger:    noopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TierFor picks the persistence tier for a remember choice.
func TierFor(remember bool) Tier {
	if remember {
		return TierDurable
	}
	return TierEphemeral
}

// Save stores artifacts in the given tier and clears the other one, so a
// session downgrade from durable to ephemeral leaves no stale copy.
func (a *Adapter) Save(artifacts *Artifacts, tier Tier) error {
	if artifacts == nil {
		return goerrors.New("cannot persist nil session artifacts", goerrors.CategoryBadInput)
	}

	target, other := a.ephemeral, a.durable
	if tier == TierDurable {
		target, other = a.durable, a.ephemeral
	}

	if err := other.Clear(); err != nil {
		a.logger.Warn("failed to clear %s tier before save: %v", otherTier(tier), err)
	}

	if err := target.Save(artifacts); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist session artifacts").
			WithMetadata(map[string]any{"tier": tier})
	}

	return nil
}

// Clear wipes both tiers unconditionally.
func (a *Adapter) Clear() error {
	var firstErr error
	for _, store := range []TierStore{a.durable, a.ephemeral} {
		if err := store.Clear(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return goerrors.Wrap(firstErr, goerrors.CategoryOperation, "failed to clear session artifacts")
	}

	return nil
}

// LoadValid returns the first unexpired artifacts, checking the durable
// tier first. Expired artifacts are purged on read.
func (a *Adapter) LoadValid() (*Artifacts, Tier, error) {
	now := a.now()

	for _, candidate := range []struct {
		tier  Tier
		store TierStore
	}{
		{TierDurable, a.durable},
		{TierEphemeral, a.ephemeral},
	} {
		artifacts, err := candidate.store.Load()
		if err != nil {
			a.logger.Warn("failed to load %s tier: %v", candidate.tier, err)
			continue
		}

		if artifacts == nil {
			continue
		}

		if artifacts.IsExpired(now) {
			if err := candidate.store.Clear(); err != nil {
				a.logger.Warn("failed to purge expired %s tier: %v", candidate.tier, err)
			}
			continue
		}

		return artifacts, candidate.tier, nil
	}

	return nil, "", nil
}

func otherTier(tier Tier) Tier {
	if tier == TierDurable {
		return TierEphemeral
	}
	return TierDurable
}
