package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/config"
)

const (
	keyUserID    = "userId"
	keyUserName  = "userName"
	keyUserEmail = "userEmail"
)

var ErrNoSession = errors.New("no user logged in")

// NewStore returns a Redis backed store when a Redis URL is configured and a
// filesystem store otherwise.
func NewStore(ctx context.Context, cfg config.Session) (sessions.Store, error) {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	secret := []byte(cfg.Secret)

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client, opts, secret), nil
	}

	dir := cfg.Dir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	store := sessions.NewFilesystemStore(dir, secret)
	store.Options = opts
	store.MaxAge(opts.MaxAge)
	return store, nil
}

// Manager reads and writes the logged in identity on a named session.
type Manager struct {
	store sessions.Store
	name  string
}

func NewManager(store sessions.Store, name string) *Manager {
	return &Manager{store: store, name: name}
}

// User returns the identity stored in the request's session. A cookie that
// fails to decode is reported as an error with ok false.
func (m *Manager) User(r *http.Request) (models.Identity, bool, error) {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return models.Identity{}, false, err
	}
	id, _ := sess.Values[keyUserID].(string)
	if id == "" {
		return models.Identity{}, false, nil
	}
	name, _ := sess.Values[keyUserName].(string)
	email, _ := sess.Values[keyUserEmail].(string)
	return models.Identity{ID: id, Name: name, Email: email}, true, nil
}

// Login stores the identity, starting a fresh session.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, user models.Identity) error {
	sess, _ := m.store.Get(r, m.name)
	if sess == nil {
		return errors.New("session store returned no session")
	}
	sess.Values[keyUserID] = user.ID
	sess.Values[keyUserName] = user.Name
	sess.Values[keyUserEmail] = user.Email
	return sess.Save(r, w)
}

// Refresh rewrites the stored name and email after a profile change.
func (m *Manager) Refresh(w http.ResponseWriter, r *http.Request, user models.Identity) error {
	return m.Login(w, r, user)
}

// Logout destroys the session. It returns ErrNoSession when nobody is logged in.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, err := m.store.Get(r, m.name)
	if err != nil || sess.Values[keyUserID] == nil {
		return ErrNoSession
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
