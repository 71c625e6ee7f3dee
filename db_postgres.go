package main

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	if err := p.db.Ping(); err != nil {
		return err
	}
	return nil
}

// pgUniqueErr maps unique-constraint violations back to the service errors so
// concurrent registrations that race past the existence checks still fail
// with the right reason.
func pgUniqueErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		}
	}
	return err
}

func (p *PostgresDB) CreateUser(username, email, passwordHash, displayName string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := p.db.Exec(`INSERT INTO users(id,username,email,password_hash,display_name,created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt)
	if err != nil {
		return nil, pgUniqueErr(err)
	}
	return u, nil
}

const pgUserCols = `id,username,email,password_hash,display_name,bio,is_active,created_at`

func (p *PostgresDB) scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Bio, &u.Active, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresDB) GetUserByID(id string) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT `+pgUserCols+` FROM users WHERE id = $1`, id))
}

func (p *PostgresDB) GetUserByUsername(username string) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT `+pgUserCols+` FROM users WHERE username = $1`, username))
}

func (p *PostgresDB) GetUserByEmail(email string) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT `+pgUserCols+` FROM users WHERE email = $1`, email))
}

func (p *PostgresDB) UsernameExists(username string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

func (p *PostgresDB) EmailExists(email string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (p *PostgresDB) UpdateUserProfile(id string, displayName, bio *string) (*User, error) {
	_, err := p.db.Exec(`UPDATE users SET display_name = COALESCE($2, display_name), bio = COALESCE($3, bio) WHERE id = $1`,
		id, displayName, bio)
	if err != nil {
		return nil, err
	}
	return p.GetUserByID(id)
}

func (p *PostgresDB) SearchUsers(query string, page, size int) ([]*User, int64, error) {
	pattern := "%" + query + "%"
	var total int64
	if err := p.db.QueryRow(`SELECT COUNT(1) FROM users WHERE username ILIKE $1 OR display_name ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.db.Query(`SELECT `+pgUserCols+` FROM users WHERE username ILIKE $1 OR display_name ILIKE $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		pattern, size, page*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := p.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

const pgPostCols = `id,user_id,content,like_count,is_deleted,created_at`

func (p *PostgresDB) scanPost(row interface{ Scan(...interface{}) error }) (*Post, error) {
	var post Post
	if err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.LikeCount, &post.Deleted, &post.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (p *PostgresDB) CreatePost(userID, content string) (*Post, error) {
	post := &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := p.db.Exec(`INSERT INTO posts(id,user_id,content,created_at) VALUES($1,$2,$3,$4)`,
		post.ID, post.UserID, post.Content, post.CreatedAt)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (p *PostgresDB) GetPostByID(id string) (*Post, error) {
	return p.scanPost(p.db.QueryRow(`SELECT `+pgPostCols+` FROM posts WHERE id = $1 AND is_deleted = false`, id))
}

func (p *PostgresDB) GetPostsByUser(userID string, page, size int) ([]*Post, int64, error) {
	var total int64
	if err := p.db.QueryRow(`SELECT COUNT(1) FROM posts WHERE user_id = $1 AND is_deleted = false`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.db.Query(`SELECT `+pgPostCols+` FROM posts WHERE user_id = $1 AND is_deleted = false ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, size, page*size)
	if err != nil {
		return nil, 0, err
	}
	return p.collectPosts(rows, total)
}

func (p *PostgresDB) PublicTimeline(page, size int) ([]*Post, int64, error) {
	var total int64
	if err := p.db.QueryRow(`SELECT COUNT(1) FROM posts WHERE is_deleted = false`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.db.Query(`SELECT `+pgPostCols+` FROM posts WHERE is_deleted = false ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		size, page*size)
	if err != nil {
		return nil, 0, err
	}
	return p.collectPosts(rows, total)
}

func (p *PostgresDB) collectPosts(rows *sql.Rows, total int64) ([]*Post, int64, error) {
	defer rows.Close()
	var posts []*Post
	for rows.Next() {
		post, err := p.scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	return posts, total, rows.Err()
}

func (p *PostgresDB) LikePost(postID, userID string) (*Post, error) {
	post, err := p.GetPostByID(postID)
	if err != nil || post == nil {
		return nil, err
	}
	res, err := p.db.Exec(`INSERT INTO post_likes(id,post_id,user_id,created_at) VALUES($1,$2,$3,now()) ON CONFLICT (post_id,user_id) DO NOTHING`,
		uuid.NewString(), postID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := p.db.Exec(`UPDATE posts SET like_count = like_count + 1 WHERE id = $1`, postID); err != nil {
			return nil, err
		}
	}
	return p.GetPostByID(postID)
}

func (p *PostgresDB) UnlikePost(postID, userID string) (*Post, error) {
	post, err := p.GetPostByID(postID)
	if err != nil || post == nil {
		return nil, err
	}
	res, err := p.db.Exec(`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := p.db.Exec(`UPDATE posts SET like_count = GREATEST(like_count - 1, 0) WHERE id = $1`, postID); err != nil {
			return nil, err
		}
	}
	return p.GetPostByID(postID)
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
