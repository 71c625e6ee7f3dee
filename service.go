package main

import "errors"

// Registration and login failures surfaced to the handlers.
var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// registerUser creates a new account. The username check runs before the
// email check and the first violation wins. A concurrent registration that
// slips past both checks is caught by the store's unique constraints, which
// the adapters translate back into the same taken-errors.
func (a *App) registerUser(username, email, password, displayName string) (*User, error) {
	taken, err := a.DB.UsernameExists(username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	taken, err = a.DB.EmailExists(email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	return a.DB.CreateUser(username, email, hashed, displayName)
}

// loginUser authenticates by username or email. Every failure mode collapses
// into ErrInvalidCredentials so callers cannot probe which part was wrong.
func (a *App) loginUser(usernameOrEmail, password string) (*User, error) {
	user, err := a.DB.GetUserByUsername(usernameOrEmail)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = a.DB.GetUserByEmail(usernameOrEmail)
		if err != nil {
			return nil, err
		}
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !comparePassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
