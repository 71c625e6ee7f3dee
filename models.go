package main

import "time"

// User represents a registered account
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          string
	Active       bool
	CreatedAt    time.Time
}

// Post represents a single post on a timeline
type Post struct {
	ID        string
	UserID    string
	Content   string
	LikeCount int
	Deleted   bool
	CreatedAt time.Time
}

// PostLike records that a user liked a post; (PostID, UserID) is unique
type PostLike struct {
	ID        string
	PostID    string
	UserID    string
	CreatedAt time.Time
}

// userResponse is the public JSON shape of a user; the password hash never
// leaves the store boundary
type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

func toPostResponse(p *Post) postResponse {
	return postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		LikeCount: p.LikeCount,
		CreatedAt: p.CreatedAt,
	}
}

func toPostPage(posts []*Post, page, size int, total int64) pageResponse {
	items := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		items = append(items, toPostResponse(p))
	}
	return pageResponse{Content: items, Page: page, Size: size, Total: total}
}

// pageResponse is the envelope for paged listings
type pageResponse struct {
	Content interface{} `json:"content"`
	Page    int         `json:"page"`
	Size    int         `json:"size"`
	Total   int64       `json:"total"`
}
