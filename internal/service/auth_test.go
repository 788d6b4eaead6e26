package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

func registerInput(username, email string) RegisterInput {
	return RegisterInput{
		Username:        username,
		Email:           email,
		FirstName:       "Ada",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	}
}

func TestAuthService_Register(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess, err := e.Auth.Register(ctx, registerInput("ada", "ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, sess.User.Role)
	assert.NotEmpty(t, sess.Tokens.AccessToken)

	claims, err := tokens.AccessClaimsFromToken(sess.Tokens.AccessToken, e.Auth.Tokens.AccessSecret)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id)
	assert.Equal(t, "user", claims.Role)

	assert.Equal(t, []string{"user.registered"}, e.Events.types())
	assert.EqualValues(t, 1, e.count(t, &models.RefreshToken{}))
}

func TestAuthService_Register_Validation(t *testing.T) {
	e := newEnv(t)

	short := registerInput("ada", "ada@example.com")
	short.Password, short.PasswordConfirm = "short", "short"
	mismatch := registerInput("ada", "ada@example.com")
	mismatch.PasswordConfirm = "something-else"

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "empty username", in: registerInput("  ", "ada@example.com")},
		{name: "empty email", in: registerInput("ada", "")},
		{name: "short password", in: short},
		{name: "confirmation mismatch", in: mismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Auth.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, e.count(t, &models.User{}))
}

func TestAuthService_Register_DuplicateIsConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.Auth.Register(ctx, registerInput("ada", "ada@example.com"))
	require.NoError(t, err)

	_, err = e.Auth.Register(ctx, registerInput("ADA", "other@example.com"))
	require.ErrorIs(t, err, ErrConflict)
	_, err = e.Auth.Register(ctx, registerInput("grace", "Ada@Example.com"))
	require.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_UsernameTaken_CaseInsensitive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, "Alice")

	for _, name := range []string{"alice", "ALICE", "Alice"} {
		taken, err := e.Auth.UsernameTaken(ctx, name)
		require.NoError(t, err)
		assert.True(t, taken, name)
	}
	taken, err := e.Auth.UsernameTaken(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = e.Auth.UsernameTaken(ctx, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Login(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, "alice")

	sess, err := e.Auth.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)

	_, err = e.Auth.Login(ctx, "alice", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.Auth.Login(ctx, "nobody", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Refresh_RotatesAndRevokes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, "alice")

	sess, err := e.Auth.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	next, err := e.Auth.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Tokens.RefreshToken, next.Tokens.RefreshToken)

	_, err = e.Auth.Refresh(ctx, sess.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, e.Auth.Logout(ctx, next.Tokens.RefreshToken))
	_, err = e.Auth.Refresh(ctx, next.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.Auth.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_Refresh_PicksUpRoleChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")

	sess, err := e.Auth.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	require.NoError(t, e.DB.Model(&models.User{}).Where("id = ?", p.UserID).Update("role", models.RoleAdmin).Error)

	next, err := e.Auth.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := tokens.AccessClaimsFromToken(next.Tokens.AccessToken, e.Auth.Tokens.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	e.user(t, "bob")

	addr, phone := " 1 Main St ", "555-0100"
	user, err := e.Auth.UpdateProfile(ctx, alice, ProfilePatch{Address: &addr, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", user.Address)
	assert.Equal(t, "555-0100", user.Phone)
	assert.Equal(t, "alice", user.Username)

	taken := "BOB"
	_, err = e.Auth.UpdateProfile(ctx, alice, ProfilePatch{Username: &taken})
	require.ErrorIs(t, err, ErrConflict)

	same := "alice"
	_, err = e.Auth.UpdateProfile(ctx, alice, ProfilePatch{Username: &same})
	require.NoError(t, err)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.Auth.EnsureAdmin(ctx, "root", "root@example.com", "s3cret-pass"))
	require.NoError(t, e.Auth.EnsureAdmin(ctx, "root", "root@example.com", "s3cret-pass"))
	assert.EqualValues(t, 1, e.count(t, &models.User{}))

	sess, err := e.Auth.Login(ctx, "root", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, sess.User.IsAdmin())

	e.user(t, "promote-me")
	require.NoError(t, e.Auth.EnsureAdmin(ctx, "promote-me", "x@example.com", "whatever1"))
	var u models.User
	require.NoError(t, e.DB.Where("username = ?", "promote-me").First(&u).Error)
	assert.Equal(t, models.RoleAdmin, u.Role)
}
