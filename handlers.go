package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"
)

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type authResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int64        `json:"expires_in"` // seconds
	User      userResponse `json:"user"`
}

func validRegistration(req *registerRequest) string {
	if len(req.Username) < 3 || len(req.Username) > 30 {
		return "Username must be between 3 and 30 characters"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "Email must be valid"
	}
	if len(req.Password) < 8 {
		return "Password must be at least 8 characters"
	}
	return ""
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if msg := validRegistration(&req); msg != "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", msg)
		return
	}

	user, err := a.registerUser(req.Username, req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username already exists")
		case errors.Is(err, ErrEmailTaken):
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register user")
		}
		return
	}

	a.writeAuthResponse(w, http.StatusCreated, user)
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username or email and password are required")
		return
	}

	user, err := a.loginUser(req.UsernameOrEmail, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		} else {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in")
		}
		return
	}

	a.writeAuthResponse(w, http.StatusOK, user)
}

func (a *App) writeAuthResponse(w http.ResponseWriter, status int, user *User) {
	token, err := mintToken(user.Username, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}
	writeJSON(w, status, authResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(jwtTTL / time.Second),
		User:      toUserResponse(user),
	})
}
