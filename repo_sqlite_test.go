package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	auth "github.com/goliatone/go-shop-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testUsersDDL = `CREATE TABLE users (
	id TEXT NOT NULL PRIMARY KEY,
	user_role TEXT NOT NULL DEFAULT 'USER',
	name TEXT,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	deleted_at TIMESTAMP NULL
);`

const testVerificationCodesDDL = `CREATE TABLE verification_codes (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	code TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

func setupAuthRepo(t *testing.T) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	sqlDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, ddl := range []string{testUsersDDL, testVerificationCodesDDL} {
		_, err := db.ExecContext(ctx, ddl)
		require.NoError(t, err)
	}

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())

	return repo, db
}

func TestUsersEnsureShell(t *testing.T) {
	repo, _ := setupAuthRepo(t)
	ctx := context.Background()

	shell, err := repo.Users().EnsureShell(ctx, "Pepe@Example.com")
	require.NoError(t, err)

	assert.Equal(t, "pepe@example.com", shell.Email)
	assert.False(t, shell.IsRegistered())
	assert.Equal(t, auth.RoleUser, shell.Role)

	// Resolving the same email again returns the same row.
	again, err := repo.Users().EnsureShell(ctx, "pepe@example.com")
	require.NoError(t, err)
	assert.Equal(t, shell.ID, again.ID)
}

func TestUsersGetByEmail(t *testing.T) {
	repo, _ := setupAuthRepo(t)
	ctx := context.Background()

	_, err := repo.Users().GetByEmail(ctx, "nobody@example.com")
	assert.True(t, repository.IsRecordNotFound(err))

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	created, err := repo.Users().Register(ctx, &auth.User{
		Name:         "Pepe Rone",
		Email:        "Pepe@Example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	found, err := repo.Users().GetByEmail(ctx, "PEPE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, found.IsRegistered())
}

func TestUsersCompleteRegistration(t *testing.T) {
	repo, _ := setupAuthRepo(t)
	ctx := context.Background()

	shell, err := repo.Users().EnsureShell(ctx, "pepe@example.com")
	require.NoError(t, err)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	updated, err := repo.Users().CompleteRegistration(ctx, shell.ID, "Pepe Rone", hash)
	require.NoError(t, err)

	assert.Equal(t, shell.ID, updated.ID)
	assert.Equal(t, "Pepe Rone", updated.Name)
	assert.True(t, updated.IsRegistered())

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.Users().CompleteRegistration(ctx, uuid.New(), "Nobody", hash)
		assert.True(t, repository.IsRecordNotFound(err))
	})
}

func TestVerificationCodesLifecycle(t *testing.T) {
	repo, db := setupAuthRepo(t)
	ctx := context.Background()
	now := time.Now()

	user, err := repo.Users().EnsureShell(ctx, "pepe@example.com")
	require.NoError(t, err)

	code, err := repo.VerificationCodes().ReplaceForUser(ctx, user, now)
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)

	t.Run("valid code is found", func(t *testing.T) {
		found, err := repo.VerificationCodes().GetValid(ctx, "pepe@example.com", code.Code, now)
		require.NoError(t, err)
		assert.Equal(t, code.ID, found.ID)
	})

	t.Run("wrong code is not found", func(t *testing.T) {
		_, err := repo.VerificationCodes().GetValid(ctx, "pepe@example.com", "000000", now)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("resend replaces the previous code", func(t *testing.T) {
		fresh, err := repo.VerificationCodes().ReplaceForUser(ctx, user, now)
		require.NoError(t, err)

		_, err = repo.VerificationCodes().GetValid(ctx, "pepe@example.com", code.Code, now)
		assert.True(t, repository.IsRecordNotFound(err))

		code = fresh
	})

	t.Run("expired code is not found", func(t *testing.T) {
		past := now.Add(-auth.VerificationCodeTTL)
		_, err := db.NewUpdate().
			Model((*auth.VerificationCode)(nil)).
			Set("expires_at = ?", past).
			Where("email = ?", "pepe@example.com").
			Exec(ctx)
		require.NoError(t, err)

		_, err = repo.VerificationCodes().GetValid(ctx, "pepe@example.com", code.Code, now)
		assert.True(t, repository.IsRecordNotFound(err))

		code, err = repo.VerificationCodes().ReplaceForUser(ctx, user, now)
		require.NoError(t, err)
	})

	t.Run("consume is single use", func(t *testing.T) {
		require.NoError(t, repo.VerificationCodes().Consume(ctx, code.ID))

		err := repo.VerificationCodes().Consume(ctx, code.ID)
		assert.True(t, repository.IsRecordNotFound(err))
	})
}
