package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/config"
)

const cookieName = "test.sid"

func newRedisManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, &sessions.Options{Path: "/", MaxAge: 3600, HttpOnly: true}, []byte("0123456789abcdef0123456789abcdef"))
	return NewManager(store, cookieName), mr
}

// roundTrip replays the cookies set by a previous response on a new request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestRedisSessionLifecycle(t *testing.T) {
	manager, mr := newRedisManager(t)
	alice := models.Identity{ID: "u1", Name: "alice", Email: "alice@example.com"}

	rec := httptest.NewRecorder()
	if err := manager.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), alice); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected one session key in redis, got %v", mr.Keys())
	}
	key := mr.Keys()[0]
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("expected 1h ttl, got %s", ttl)
	}

	got, ok, err := manager.User(roundTrip(rec))
	if err != nil || !ok {
		t.Fatalf("expected a logged in user, ok=%v err=%v", ok, err)
	}
	if got != alice {
		t.Errorf("expected %+v, got %+v", alice, got)
	}

	logout := httptest.NewRecorder()
	if err := manager.Logout(logout, roundTrip(rec)); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if mr.Exists(key) {
		t.Error("expected session to be removed from redis")
	}

	if _, ok, _ := manager.User(roundTrip(rec)); ok {
		t.Error("stale cookie should no longer authenticate")
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	manager, _ := newRedisManager(t)
	err := manager.Logout(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/login", nil))
	if err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestTamperedCookie(t *testing.T) {
	manager, _ := newRedisManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged"})

	if _, ok, err := manager.User(req); ok || err == nil {
		t.Fatalf("expected decode failure, ok=%v err=%v", ok, err)
	}
}

func TestFilesystemStoreFallback(t *testing.T) {
	store, err := NewStore(context.Background(), config.Session{
		Name:   cookieName,
		Secret: "secret",
		MaxAge: time.Hour,
		Dir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.(*sessions.FilesystemStore); !ok {
		t.Fatalf("expected a filesystem store, got %T", store)
	}

	manager := NewManager(store, cookieName)
	rec := httptest.NewRecorder()
	bob := models.Identity{ID: "u2", Name: "bob", Email: "bob@example.com"}
	if err := manager.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), bob); err != nil {
		t.Fatalf("login: %v", err)
	}
	got, ok, err := manager.User(roundTrip(rec))
	if err != nil || !ok || got != bob {
		t.Fatalf("unexpected session user %+v ok=%v err=%v", got, ok, err)
	}
}
