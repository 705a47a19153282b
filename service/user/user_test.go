package user

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/db/dbtest"
	"github.com/terrascenik/server/service/aggregate"
)

func newService(t *testing.T, hash bool) (*Service, *db.Store) {
	t.Helper()
	store := dbtest.NewStore(t)
	svc := NewService(store, aggregate.New(store), hash, zap.NewNop())
	svc.passwords.cost = bcrypt.MinCost
	return svc, store
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.Bio != "" {
		t.Errorf("expected empty bio, got %q", registered.Bio)
	}

	user, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("logged in as %s, expected %s", user.ID, registered.ID)
	}

	body, err := json.Marshal(user.Public())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), "password") || strings.Contains(string(body), `"pw"`) {
		t.Errorf("public user leaks the password: %s", body)
	}
	full, _ := json.Marshal(user)
	if strings.Contains(string(full), `"pw"`) {
		t.Errorf("user json leaks the password: %s", full)
	}
}

func TestRegisterErrors(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com"}); utils.KindOf(err) != utils.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "alice2", Email: "a@x.com", Password: "pw"}); utils.KindOf(err) != utils.KindConflict {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestLoginRejects(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct{ name, password string }{
		{"alice", "PW"},
		{"nobody", "pw"},
	} {
		_, err := svc.Login(ctx, tt.name, tt.password)
		if utils.KindOf(err) != utils.KindUnauthorized {
			t.Errorf("%s/%s: expected unauthorized, got %v", tt.name, tt.password, err)
		}
		if err != nil && err.Error() != "Invalid username or password" {
			t.Errorf("unexpected message %q", err.Error())
		}
	}
}

func TestHashedPasswords(t *testing.T) {
	svc, store := newService(t, true)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, err := store.Users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Password == "pw" || !isBcrypt(stored.Password) {
		t.Errorf("expected a bcrypt hash, got %q", stored.Password)
	}
	if _, err := svc.Login(ctx, "alice", "pw"); err != nil {
		t.Errorf("login with hashed password: %v", err)
	}

	// Plaintext records still work after hashing is turned on.
	legacy := &models.User{Name: "bob", Email: "b@x.com", Password: "old"}
	if err := store.Users.Create(ctx, legacy); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "bob", "old"); err != nil {
		t.Errorf("login with legacy password: %v", err)
	}
}

func TestUpdateProfileCascades(t *testing.T) {
	svc, store := newService(t, false)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	bob, err := svc.Register(ctx, RegisterInput{Name: "bob", Email: "b@x.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}

	post := &models.Post{UserID: alice.ID, UserName: alice.Name, UserEmail: alice.Email, Caption: "c", Location: "l"}
	if err := store.Posts.Create(ctx, post); err != nil {
		t.Fatal(err)
	}
	edges := []*models.Follow{
		{FollowerID: alice.ID, FollowerName: alice.Name, FollowingID: bob.ID, FollowingName: bob.Name, FollowingEmail: bob.Email},
		{FollowerID: bob.ID, FollowerName: bob.Name, FollowingID: alice.ID, FollowingName: alice.Name, FollowingEmail: alice.Email},
	}
	for _, f := range edges {
		if err := store.Follows.Create(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.UpdateProfile(ctx, alice.ID, ProfileInput{Name: "alicia", Email: "b@x.com"}); utils.KindOf(err) != utils.KindConflict {
		t.Fatalf("expected conflict for taken email, got %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, alice.ID, ProfileInput{Name: "alicia", Email: "alicia@x.com", Bio: "hiker"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "alicia" || updated.Email != "alicia@x.com" || updated.Bio != "hiker" {
		t.Errorf("unexpected user %+v", updated)
	}

	gotPost, err := store.Posts.FindByID(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotPost.UserName != "alicia" || gotPost.UserEmail != "alicia@x.com" {
		t.Errorf("post not cascaded: %+v", gotPost)
	}

	asFollower, err := store.Follows.Find(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if asFollower.FollowerName != "alicia" {
		t.Errorf("follower name not cascaded: %+v", asFollower)
	}
	asFollowed, err := store.Follows.Find(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if asFollowed.FollowingName != "alicia" || asFollowed.FollowingEmail != "alicia@x.com" {
		t.Errorf("followed snapshot not cascaded: %+v", asFollowed)
	}

	if _, err := svc.UpdateProfile(ctx, "ghost", ProfileInput{Name: "x", Email: "x@x.com"}); utils.KindOf(err) != utils.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, alice.ID, ProfileInput{Name: "", Email: "x@x.com"}); utils.KindOf(err) != utils.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPublicProfile(t *testing.T) {
	svc, store := newService(t, false)
	ctx := context.Background()

	alice, _ := svc.Register(ctx, RegisterInput{Name: "alice", Email: "a@x.com", Password: "pw"})
	bob, _ := svc.Register(ctx, RegisterInput{Name: "bob", Email: "b@x.com", Password: "pw"})
	if err := svc.UpdatePicture(ctx, alice.ID, "https://img.test/a.png"); err != nil {
		t.Fatalf("update picture: %v", err)
	}
	if err := svc.UpdatePicture(ctx, alice.ID, ""); utils.KindOf(err) != utils.KindValidation {
		t.Errorf("expected validation error for empty picture, got %v", err)
	}

	post := &models.Post{UserID: alice.ID, UserName: alice.Name, UserEmail: alice.Email, Caption: "c", Location: "l"}
	if err := store.Posts.Create(ctx, post); err != nil {
		t.Fatal(err)
	}
	follow := &models.Follow{FollowerID: bob.ID, FollowingID: alice.ID, FollowingEmail: alice.Email}
	if err := store.Follows.Create(ctx, follow); err != nil {
		t.Fatal(err)
	}

	profile, err := svc.PublicProfile(ctx, bob.ID, "a@x.com")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !profile.IsFollowing || profile.PostsCount != 1 {
		t.Errorf("unexpected profile %+v", profile)
	}
	if profile.User.ProfilePicture == nil || *profile.User.ProfilePicture != "https://img.test/a.png" {
		t.Errorf("expected profile picture on user")
	}
	if profile.Posts[0].ProfilePicture == nil {
		t.Errorf("expected profile picture on posts")
	}

	profile, err = svc.PublicProfile(ctx, alice.ID, "b@x.com")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.IsFollowing || profile.PostsCount != 0 {
		t.Errorf("unexpected profile %+v", profile)
	}

	if _, err := svc.PublicProfile(ctx, bob.ID, "none@x.com"); utils.KindOf(err) != utils.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()
	svc.Register(ctx, RegisterInput{Name: "Alice", Email: "a@x.com", Password: "pw"})
	svc.Register(ctx, RegisterInput{Name: "bob", Email: "bob@alps.test", Password: "pw"})

	if _, err := svc.Search(ctx, ""); utils.KindOf(err) != utils.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	users, err := svc.Search(ctx, "al")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected name and email matches, got %+v", users)
	}
}
