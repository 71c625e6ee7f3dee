package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type createPostRequest struct {
	Content string `json:"content"`
}

func (a *App) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Content is required")
		return
	}
	if len(content) > 280 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Content cannot exceed 280 characters")
		return
	}
	post, err := a.DB.CreatePost(user.ID, content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

func (a *App) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	post, err := a.DB.GetPostByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load post")
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "POST_NOT_FOUND", "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

func (a *App) HandleGetUserPosts(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	page, size := parsePage(r)
	posts, total, err := a.DB.GetPostsByUser(userID, page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load posts")
		return
	}
	writeJSON(w, http.StatusOK, toPostPage(posts, page, size, total))
}

func (a *App) HandleLikePost(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	post, err := a.DB.LikePost(mux.Vars(r)["id"], user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to like post")
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "POST_NOT_FOUND", "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

func (a *App) HandleUnlikePost(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	post, err := a.DB.UnlikePost(mux.Vars(r)["id"], user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to unlike post")
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "POST_NOT_FOUND", "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// HandleHomeTimeline returns the public timeline for now; a followed-users
// feed needs a follow graph this service does not store yet.
func (a *App) HandleHomeTimeline(w http.ResponseWriter, r *http.Request) {
	a.HandlePublicTimeline(w, r)
}

func (a *App) HandlePublicTimeline(w http.ResponseWriter, r *http.Request) {
	page, size := parsePage(r)
	posts, total, err := a.DB.PublicTimeline(page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load timeline")
		return
	}
	writeJSON(w, http.StatusOK, toPostPage(posts, page, size, total))
}

func (a *App) HandleUserTimeline(w http.ResponseWriter, r *http.Request) {
	a.HandleGetUserPosts(w, r)
}
