package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/db/dbtest"
)

func TestExportDatabase(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()

	alice := &models.User{Name: "alice", Email: "a@x.com", Password: "secret-pw"}
	if err := store.Users.Create(ctx, alice); err != nil {
		t.Fatal(err)
	}
	post := &models.Post{UserID: alice.ID, UserEmail: alice.Email, Caption: "c", Location: "l"}
	if err := store.Posts.Create(ctx, post); err != nil {
		t.Fatal(err)
	}
	if err := store.Likes.Create(ctx, &models.Like{UserID: alice.ID, PostID: post.ID}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	summary, err := exportDatabase(ctx, store, dir, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := map[string]int{"users": 1, "posts": 1, "follows": 0, "likes": 1}
	for name, n := range want {
		if summary[name] != n {
			t.Errorf("%s: expected %d documents, got %d", name, n, summary[name])
		}
		if _, err := os.Stat(filepath.Join(dir, name+".json")); err != nil {
			t.Errorf("missing export file for %s: %v", name, err)
		}
	}

	users, err := os.ReadFile(filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(users), "secret-pw") {
		t.Error("export leaks passwords")
	}

	raw, err := os.ReadFile(filepath.Join(dir, fullDumpFile))
	if err != nil {
		t.Fatal(err)
	}
	var full struct {
		Summary     map[string]int             `json:"summary"`
		Collections map[string]json.RawMessage `json:"collections"`
	}
	if err := json.Unmarshal(raw, &full); err != nil {
		t.Fatalf("decode full dump: %v", err)
	}
	if full.Summary["posts"] != 1 || len(full.Collections) != 4 {
		t.Errorf("unexpected full dump %+v", full.Summary)
	}
}

func TestParseCollections(t *testing.T) {
	all, unknown := parseCollections("  ")
	if len(all) != len(models.Collections) || all[0] != models.LikesCollection || unknown != nil {
		t.Errorf("blank input should select all, relationships first: %v", all)
	}

	known, unknown := parseCollections("Posts, likes,comments")
	if len(known) != 2 || known[0] != "posts" || known[1] != "likes" {
		t.Errorf("unexpected known %v", known)
	}
	if len(unknown) != 1 || unknown[0] != "comments" {
		t.Errorf("unexpected unknown %v", unknown)
	}
}
