package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestApp() *App {
	return &App{DB: NewMemoryDB()}
}

func TestRegisterUser(t *testing.T) {
	app := newTestApp()

	user, err := app.registerUser("alice", "alice@example.com", "password123", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "Alice", user.DisplayName)
	require.True(t, user.Active)
	require.False(t, user.CreatedAt.IsZero())

	// stored hash is not the plaintext but verifies against it
	require.NotEqual(t, "password123", user.PasswordHash)
	require.True(t, comparePassword(user.PasswordHash, "password123"))
}

func TestRegisterUser_UsernameTaken(t *testing.T) {
	app := newTestApp()

	_, err := app.registerUser("alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	_, err = app.registerUser("alice", "other@example.com", "password123", "")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterUser_EmailTaken(t *testing.T) {
	app := newTestApp()

	_, err := app.registerUser("alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	_, err = app.registerUser("bob", "alice@example.com", "password123", "")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_UsernameCheckedFirst(t *testing.T) {
	app := newTestApp()

	_, err := app.registerUser("alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	// both taken: the username violation wins
	_, err = app.registerUser("alice", "alice@example.com", "password123", "")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginUser(t *testing.T) {
	app := newTestApp()
	_, err := app.registerUser("alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	byUsername, err := app.loginUser("alice", "password123")
	require.NoError(t, err)
	require.Equal(t, "alice", byUsername.Username)

	byEmail, err := app.loginUser("alice@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, byUsername.ID, byEmail.ID)
}

func TestLoginUser_InvalidCredentialsUniform(t *testing.T) {
	app := newTestApp()
	_, err := app.registerUser("alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	// wrong password and unknown identifier must be indistinguishable
	_, wrongPassword := app.loginUser("alice", "wrong-password")
	_, unknownUser := app.loginUser("nobody", "password123")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	require.Equal(t, wrongPassword, unknownUser)
}
