package main

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DB interface for database operations. Lookup methods return (nil, nil)
// when the row does not exist.
type DB interface {
	Init() error
	// User operations
	CreateUser(username, email, passwordHash, displayName string) (*User, error)
	GetUserByID(id string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	UsernameExists(username string) (bool, error)
	EmailExists(email string) (bool, error)
	UpdateUserProfile(id string, displayName, bio *string) (*User, error)
	SearchUsers(query string, page, size int) ([]*User, int64, error)
	// Post operations
	CreatePost(userID, content string) (*Post, error)
	GetPostByID(id string) (*Post, error)
	GetPostsByUser(userID string, page, size int) ([]*Post, int64, error)
	PublicTimeline(page, size int) ([]*Post, int64, error)
	LikePost(postID, userID string) (*Post, error)
	UnlikePost(postID, userID string) (*Post, error)
}

// Memory DB, used by unit tests and local development
type MemDB struct {
	mu    sync.Mutex
	users map[string]*User // keyed by id
	posts map[string]*Post // keyed by id
	likes map[string]bool  // keyed by postID+"\x00"+userID
}

func NewMemoryDB() *MemDB {
	return &MemDB{users: map[string]*User{}, posts: map[string]*Post{}, likes: map[string]bool{}}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateUser(username, email, passwordHash, displayName string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return nil, ErrUsernameTaken
		}
		if u.Email == email {
			return nil, ErrEmailTaken
		}
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemDB) GetUserByID(id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) GetUserByUsername(username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemDB) GetUserByEmail(email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemDB) UsernameExists(username string) (bool, error) {
	u, err := m.GetUserByUsername(username)
	return u != nil, err
}

func (m *MemDB) EmailExists(email string) (bool, error) {
	u, err := m.GetUserByEmail(email)
	return u != nil, err
}

func (m *MemDB) UpdateUserProfile(id string, displayName, bio *string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if bio != nil {
		u.Bio = *bio
	}
	cp := *u
	return &cp, nil
}

func (m *MemDB) SearchUsers(query string, page, size int) ([]*User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var matches []*User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			cp := *u
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return paginate(matches, page, size), int64(len(matches)), nil
}

func (m *MemDB) CreatePost(userID, content string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.posts[p.ID] = p
	return p, nil
}

func (m *MemDB) GetPostByID(id string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok && !p.Deleted {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) GetPostsByUser(userID string, page, size int) ([]*Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []*Post
	for _, p := range m.posts {
		if p.UserID == userID && !p.Deleted {
			cp := *p
			posts = append(posts, &cp)
		}
	}
	sortPostsNewestFirst(posts)
	return paginate(posts, page, size), int64(len(posts)), nil
}

func (m *MemDB) PublicTimeline(page, size int) ([]*Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []*Post
	for _, p := range m.posts {
		if !p.Deleted {
			cp := *p
			posts = append(posts, &cp)
		}
	}
	sortPostsNewestFirst(posts)
	return paginate(posts, page, size), int64(len(posts)), nil
}

func (m *MemDB) LikePost(postID, userID string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok || p.Deleted {
		return nil, nil
	}
	key := postID + "\x00" + userID
	if !m.likes[key] {
		m.likes[key] = true
		p.LikeCount++
	}
	cp := *p
	return &cp, nil
}

func (m *MemDB) UnlikePost(postID, userID string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok || p.Deleted {
		return nil, nil
	}
	key := postID + "\x00" + userID
	if m.likes[key] {
		delete(m.likes, key)
		if p.LikeCount > 0 {
			p.LikeCount--
		}
	}
	cp := *p
	return &cp, nil
}

func sortPostsNewestFirst(posts []*Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func paginate[T any](items []T, page, size int) []T {
	start := page * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// Fixed-width timestamp so lexicographic ORDER BY on the TEXT column matches
// chronological order.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			like_count INTEGER NOT NULL DEFAULT 0,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_post_user ON posts(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_post_created_at ON posts(created_at);`,
		`CREATE TABLE IF NOT EXISTS post_likes (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(post_id, user_id)
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func sqliteUniqueErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "users.email"):
		return ErrEmailTaken
	}
	return err
}

func (s *SQLiteDB) CreateUser(username, email, passwordHash, displayName string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec(`INSERT INTO users(id,username,email,password_hash,display_name,created_at) VALUES(?,?,?,?,?,?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt.Format(sqliteTimeFormat))
	if err != nil {
		return nil, sqliteUniqueErr(err)
	}
	return u, nil
}

func (s *SQLiteDB) scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var active int
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Bio, &active, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Active = active != 0
	u.CreatedAt, _ = time.Parse(sqliteTimeFormat, created)
	return &u, nil
}

const sqliteUserCols = `id,username,email,password_hash,display_name,bio,is_active,created_at`

func (s *SQLiteDB) GetUserByID(id string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+sqliteUserCols+` FROM users WHERE id = ?`, id))
}

func (s *SQLiteDB) GetUserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+sqliteUserCols+` FROM users WHERE username = ?`, username))
}

func (s *SQLiteDB) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+sqliteUserCols+` FROM users WHERE email = ?`, email))
}

func (s *SQLiteDB) UsernameExists(username string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteDB) EmailExists(email string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteDB) UpdateUserProfile(id string, displayName, bio *string) (*User, error) {
	if displayName != nil {
		if _, err := s.db.Exec(`UPDATE users SET display_name = ? WHERE id = ?`, *displayName, id); err != nil {
			return nil, err
		}
	}
	if bio != nil {
		if _, err := s.db.Exec(`UPDATE users SET bio = ? WHERE id = ?`, *bio, id); err != nil {
			return nil, err
		}
	}
	return s.GetUserByID(id)
}

func (s *SQLiteDB) SearchUsers(query string, page, size int) ([]*User, int64, error) {
	pattern := "%" + query + "%"
	var total int64
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE username LIKE ? OR display_name LIKE ?`, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(`SELECT `+sqliteUserCols+` FROM users WHERE username LIKE ? OR display_name LIKE ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		pattern, pattern, size, page*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

const sqlitePostCols = `id,user_id,content,like_count,is_deleted,created_at`

func (s *SQLiteDB) scanPost(row interface{ Scan(...interface{}) error }) (*Post, error) {
	var p Post
	var deleted int
	var created string
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.LikeCount, &deleted, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.Deleted = deleted != 0
	p.CreatedAt, _ = time.Parse(sqliteTimeFormat, created)
	return &p, nil
}

func (s *SQLiteDB) CreatePost(userID, content string) (*Post, error) {
	p := &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`INSERT INTO posts(id,user_id,content,created_at) VALUES(?,?,?,?)`,
		p.ID, p.UserID, p.Content, p.CreatedAt.Format(sqliteTimeFormat))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteDB) GetPostByID(id string) (*Post, error) {
	return s.scanPost(s.db.QueryRow(`SELECT `+sqlitePostCols+` FROM posts WHERE id = ? AND is_deleted = 0`, id))
}

func (s *SQLiteDB) queryPosts(countQuery, listQuery string, args ...interface{}) func(page, size int) ([]*Post, int64, error) {
	return func(page, size int) ([]*Post, int64, error) {
		var total int64
		if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
			return nil, 0, err
		}
		listArgs := append(append([]interface{}{}, args...), size, page*size)
		rows, err := s.db.Query(listQuery, listArgs...)
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		var posts []*Post
		for rows.Next() {
			p, err := s.scanPost(rows)
			if err != nil {
				return nil, 0, err
			}
			posts = append(posts, p)
		}
		return posts, total, rows.Err()
	}
}

func (s *SQLiteDB) GetPostsByUser(userID string, page, size int) ([]*Post, int64, error) {
	return s.queryPosts(
		`SELECT COUNT(1) FROM posts WHERE user_id = ? AND is_deleted = 0`,
		`SELECT `+sqlitePostCols+` FROM posts WHERE user_id = ? AND is_deleted = 0 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID,
	)(page, size)
}

func (s *SQLiteDB) PublicTimeline(page, size int) ([]*Post, int64, error) {
	return s.queryPosts(
		`SELECT COUNT(1) FROM posts WHERE is_deleted = 0`,
		`SELECT `+sqlitePostCols+` FROM posts WHERE is_deleted = 0 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
	)(page, size)
}

func (s *SQLiteDB) LikePost(postID, userID string) (*Post, error) {
	post, err := s.GetPostByID(postID)
	if err != nil || post == nil {
		return nil, err
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO post_likes(id,post_id,user_id,created_at) VALUES(?,?,?,?)`,
		uuid.NewString(), postID, userID, time.Now().UTC().Format(sqliteTimeFormat))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := s.db.Exec(`UPDATE posts SET like_count = like_count + 1 WHERE id = ?`, postID); err != nil {
			return nil, err
		}
	}
	return s.GetPostByID(postID)
}

func (s *SQLiteDB) UnlikePost(postID, userID string) (*Post, error) {
	post, err := s.GetPostByID(postID)
	if err != nil || post == nil {
		return nil, err
	}
	res, err := s.db.Exec(`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := s.db.Exec(`UPDATE posts SET like_count = MAX(like_count - 1, 0) WHERE id = ?`, postID); err != nil {
			return nil, err
		}
	}
	return s.GetPostByID(postID)
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
