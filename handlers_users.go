package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// currentUser resolves the acting identity from the subject the filter
// attached. A validated token whose subject no longer exists counts as
// unauthenticated.
func (a *App) currentUser(w http.ResponseWriter, r *http.Request) *User {
	subject, ok := subjectFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil
	}
	user, err := a.DB.GetUserByUsername(subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve user")
		return nil
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil
	}
	return user
}

// parsePage reads page/size query params, defaulting to page 0, size 20.
func parsePage(r *http.Request) (page, size int) {
	page, size = 0, 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v >= 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 && v <= 100 {
		size = v
	}
	return page, size
}

func (a *App) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := a.DB.GetUserByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *App) HandleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	user, err := a.DB.GetUserByUsername(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

func (a *App) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	acting := a.currentUser(w, r)
	if acting == nil {
		return
	}
	id := mux.Vars(r)["id"]
	if id != acting.ID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Cannot update another user's profile")
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.DisplayName != nil && len(*req.DisplayName) > 100 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Display name cannot exceed 100 characters")
		return
	}
	if req.Bio != nil && len(*req.Bio) > 200 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Bio cannot exceed 200 characters")
		return
	}
	user, err := a.DB.UpdateUserProfile(id, req.DisplayName, req.Bio)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *App) HandleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Query parameter q is required")
		return
	}
	page, size := parsePage(r)
	users, total, err := a.DB.SearchUsers(query, page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search users")
		return
	}
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, pageResponse{Content: items, Page: page, Size: size, Total: total})
}
