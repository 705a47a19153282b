package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/config"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/db/dbtest"
)

func createUser(t *testing.T, store *db.Store, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Password: "secret"}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func TestUsersUniqueEmail(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice", "alice@example.com")
	if alice.ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	err := store.Users.Create(ctx, &models.User{Name: "other", Email: "alice@example.com", Password: "x"})
	if !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	found, err := store.Users.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != alice.ID {
		t.Errorf("expected %s, got %s", alice.ID, found.ID)
	}

	if _, err := store.Users.FindByID(ctx, "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersSearchIsCaseInsensitive(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()

	createUser(t, store, "Alice", "alice@example.com")
	createUser(t, store, "bob", "bob@Photos.test")
	createUser(t, store, "carol_100", "carol@example.com")

	users, err := store.Users.Search(ctx, "ALI")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Alice" {
		t.Errorf("expected Alice, got %+v", users)
	}

	users, err = store.Users.Search(ctx, "photos")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 1 || users[0].Name != "bob" {
		t.Errorf("expected bob, got %+v", users)
	}

	// Wildcards in the query are literal.
	users, err = store.Users.Search(ctx, "%")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no matches for %%, got %d", len(users))
	}
	users, err = store.Users.Search(ctx, "_1")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("expected carol_100 only, got %+v", users)
	}
}

func TestPostsNewestFirst(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice", "alice@example.com")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, caption := range []string{"first", "second", "third"} {
		post := &models.Post{
			UserID:    alice.ID,
			UserName:  alice.Name,
			UserEmail: alice.Email,
			Caption:   caption,
			Location:  "Alps",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Posts.Create(ctx, post); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	posts, err := store.Posts.FindByUserIDs(ctx, []string{alice.ID, alice.ID})
	if err != nil {
		t.Fatalf("find by users: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	if posts[0].Caption != "third" || posts[2].Caption != "first" {
		t.Errorf("unexpected order: %s, %s, %s", posts[0].Caption, posts[1].Caption, posts[2].Caption)
	}

	found, err := store.Posts.Search(ctx, "alps")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 3 {
		t.Errorf("expected location match on all posts, got %d", len(found))
	}
}

func TestPostUpdateKeepsImageWhenAbsent(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice", "alice@example.com")

	post := &models.Post{UserID: alice.ID, Caption: "c", Location: "l", ImageURL: "/uploads/a.jpg"}
	if err := store.Posts.Create(ctx, post); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	if err := store.Posts.Update(ctx, post.ID, db.PostUpdate{Caption: "c2", Location: "l2", UpdatedAt: now}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Posts.FindByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Caption != "c2" || got.ImageURL != "/uploads/a.jpg" {
		t.Errorf("unexpected post after update: %+v", got)
	}
	if got.UpdatedAt == nil {
		t.Error("expected updatedAt to be set")
	}

	empty := ""
	if err := store.Posts.Update(ctx, post.ID, db.PostUpdate{Caption: "c3", Location: "l3", ImageURL: &empty, UpdatedAt: now}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Posts.FindByID(ctx, post.ID)
	if got.ImageURL != "" {
		t.Errorf("expected image to be cleared, got %q", got.ImageURL)
	}

	if err := store.Posts.Update(ctx, "missing", db.PostUpdate{UpdatedAt: now}); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFollowsAreUniquePairs(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice", "alice@example.com")
	bob := createUser(t, store, "bob", "bob@example.com")

	follow := &models.Follow{FollowerID: alice.ID, FollowerName: alice.Name, FollowingID: bob.ID, FollowingName: bob.Name, FollowingEmail: bob.Email}
	if err := store.Follows.Create(ctx, follow); err != nil {
		t.Fatalf("create follow: %v", err)
	}
	dup := *follow
	if err := store.Follows.Create(ctx, &dup); !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	n, err := store.Follows.UpdateFollowing(ctx, bob.ID, "robert", "robert@example.com")
	if err != nil || n != 1 {
		t.Fatalf("update following: n=%d err=%v", n, err)
	}
	got, err := store.Follows.Find(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.FollowingName != "robert" || got.FollowingEmail != "robert@example.com" {
		t.Errorf("snapshot not updated: %+v", got)
	}

	if err := store.Follows.Delete(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Follows.Delete(ctx, alice.ID, bob.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLikeCounts(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice", "alice@example.com")
	bob := createUser(t, store, "bob", "bob@example.com")

	p1 := &models.Post{UserID: alice.ID, Caption: "a", Location: "x"}
	p2 := &models.Post{UserID: alice.ID, Caption: "b", Location: "y"}
	for _, p := range []*models.Post{p1, p2} {
		if err := store.Posts.Create(ctx, p); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	for _, like := range []*models.Like{
		{UserID: alice.ID, PostID: p1.ID},
		{UserID: bob.ID, PostID: p1.ID},
		{UserID: bob.ID, PostID: p2.ID},
	} {
		if err := store.Likes.Create(ctx, like); err != nil {
			t.Fatalf("create like: %v", err)
		}
	}
	if err := store.Likes.Create(ctx, &models.Like{UserID: bob.ID, PostID: p2.ID}); !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	counts, err := store.Likes.CountByPosts(ctx, []string{p1.ID, p2.ID, "none"})
	if err != nil {
		t.Fatalf("count by posts: %v", err)
	}
	if counts[p1.ID] != 2 || counts[p2.ID] != 1 || counts["none"] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}

	liked, err := store.Likes.LikedPosts(ctx, alice.ID, []string{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("liked posts: %v", err)
	}
	if !liked[p1.ID] || liked[p2.ID] {
		t.Errorf("unexpected liked set: %v", liked)
	}

	removed, err := store.Likes.DeleteByPost(ctx, p1.ID)
	if err != nil || removed != 2 {
		t.Fatalf("delete by post: removed=%d err=%v", removed, err)
	}
	if n, _ := store.Likes.Count(ctx, p1.ID); n != 0 {
		t.Errorf("expected 0 likes after delete, got %d", n)
	}
}

func TestDumpAndDrop(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	createUser(t, store, "alice", "alice@example.com")

	dump, err := store.Dump(ctx)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if users, ok := dump[models.UsersCollection].([]models.User); !ok || len(users) != 1 {
		t.Errorf("unexpected users in dump: %#v", dump[models.UsersCollection])
	}

	if err := store.Drop(ctx, "nope"); err == nil {
		t.Error("expected an error for an unknown collection")
	}
	if err := store.Drop(ctx, models.LikesCollection); err != nil {
		t.Fatalf("drop likes: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
}

func TestPostsCountByImageURL(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice", "alice@example.com")
	bob := createUser(t, store, "bob", "bob@example.com")

	for _, p := range []*models.Post{
		{UserID: alice.ID, Caption: "a", Location: "l", ImageURL: "/uploads/shared.jpg"},
		{UserID: bob.ID, Caption: "b", Location: "l", ImageURL: "/uploads/shared.jpg"},
		{UserID: bob.ID, Caption: "c", Location: "l", ImageURL: "/uploads/other.jpg"},
	} {
		if err := store.Posts.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	n, err := store.Posts.CountByImageURL(ctx, "/uploads/shared.jpg")
	if err != nil || n != 2 {
		t.Errorf("expected 2 posts sharing the image, got %d %v", n, err)
	}
	if n, _ := store.Posts.CountByImageURL(ctx, "/uploads/none.jpg"); n != 0 {
		t.Errorf("expected no posts, got %d", n)
	}
}

func TestSQLQueryLogGoesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	gdb, err := db.NewSQLStorage(config.Database{
		Driver:       "sqlite",
		URL:          "file:" + uuid.New().String() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, zap.New(core))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := db.NewGormStore(gdb)
	ctx := context.Background()
	t.Cleanup(func() { _ = store.Close(ctx) })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	createUser(t, store, "alice", "alice@example.com")
	logs.TakeAll()

	if _, err := store.Users.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("a lookup that finds nothing should not be logged, got %v", logs.All())
	}

	dup := &models.User{Name: "other", Email: "alice@example.com", Password: "x"}
	if err := store.Users.Create(ctx, dup); !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if logs.Len() == 0 {
		t.Error("expected the failed insert to be logged through zap")
	}
}
