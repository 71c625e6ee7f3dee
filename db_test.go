package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSQLiteDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.close() })
	return db
}

func TestSQLiteUsers(t *testing.T) {
	db := newTestSQLiteDB(t)

	u, err := db.CreateUser("alice", "alice@example.com", "hashed", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.True(t, u.Active)

	byID, err := db.GetUserByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Equal(t, "alice", byID.Username)
	require.Equal(t, "hashed", byID.PasswordHash)
	require.WithinDuration(t, u.CreatedAt, byID.CreatedAt, time.Second)

	byUsername, err := db.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, byUsername)
	require.Equal(t, u.ID, byUsername.ID)

	byEmail, err := db.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	require.Equal(t, u.ID, byEmail.ID)

	missing, err := db.GetUserByUsername("nobody")
	require.NoError(t, err)
	require.Nil(t, missing)

	exists, err := db.UsernameExists("alice")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = db.EmailExists("nobody@example.com")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSQLiteUsers_UniqueConstraints(t *testing.T) {
	db := newTestSQLiteDB(t)

	_, err := db.CreateUser("alice", "alice@example.com", "hashed", "")
	require.NoError(t, err)

	_, err = db.CreateUser("alice", "other@example.com", "hashed", "")
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = db.CreateUser("bob", "alice@example.com", "hashed", "")
	require.ErrorIs(t, err, ErrEmailTaken)

	// uniqueness is case-sensitive at the storage layer
	_, err = db.CreateUser("Alice", "upper@example.com", "hashed", "")
	require.NoError(t, err)
}

func TestSQLiteUpdateProfile(t *testing.T) {
	db := newTestSQLiteDB(t)
	u, err := db.CreateUser("alice", "alice@example.com", "hashed", "")
	require.NoError(t, err)

	displayName := "Alice"
	updated, err := db.UpdateUserProfile(u.ID, &displayName, nil)
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.DisplayName)
	require.Equal(t, "", updated.Bio)

	bio := "hello"
	updated, err = db.UpdateUserProfile(u.ID, nil, &bio)
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.DisplayName)
	require.Equal(t, "hello", updated.Bio)

	missing, err := db.UpdateUserProfile("no-such-id", &displayName, nil)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSQLiteSearchUsers(t *testing.T) {
	db := newTestSQLiteDB(t)
	_, err := db.CreateUser("alice", "alice@example.com", "hashed", "Alice A")
	require.NoError(t, err)
	_, err = db.CreateUser("alicia", "alicia@example.com", "hashed", "")
	require.NoError(t, err)
	_, err = db.CreateUser("bob", "bob@example.com", "hashed", "")
	require.NoError(t, err)

	users, total, err := db.SearchUsers("ali", 0, 20)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, users, 2)

	users, total, err = db.SearchUsers("ali", 0, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, users, 1)
}

func TestSQLitePosts(t *testing.T) {
	db := newTestSQLiteDB(t)
	u, err := db.CreateUser("alice", "alice@example.com", "hashed", "")
	require.NoError(t, err)

	var last *Post
	for _, content := range []string{"one", "two", "three"} {
		last, err = db.CreatePost(u.ID, content)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct created_at ordering
	}

	got, err := db.GetPostByID(last.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "three", got.Content)

	posts, total, err := db.PublicTimeline(0, 20)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, posts, 3)
	require.Equal(t, "three", posts[0].Content) // newest first
	require.Equal(t, "one", posts[2].Content)

	posts, total, err = db.GetPostsByUser(u.ID, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, posts, 1)
	require.Equal(t, "one", posts[0].Content)
}

func TestSQLiteLikes(t *testing.T) {
	db := newTestSQLiteDB(t)
	u, err := db.CreateUser("alice", "alice@example.com", "hashed", "")
	require.NoError(t, err)
	post, err := db.CreatePost(u.ID, "hello")
	require.NoError(t, err)

	liked, err := db.LikePost(post.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, liked.LikeCount)

	// duplicate like does not double count
	liked, err = db.LikePost(post.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, liked.LikeCount)

	unliked, err := db.UnlikePost(post.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, unliked.LikeCount)

	// unliking again stays at zero
	unliked, err = db.UnlikePost(post.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, unliked.LikeCount)

	missing, err := db.LikePost("no-such-post", u.ID)
	require.NoError(t, err)
	require.Nil(t, missing)
}
