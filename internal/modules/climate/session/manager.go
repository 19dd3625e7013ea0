package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Manager binds a Store to a browser cookie. The cookie has no Max-Age, so
// it ends with the browser session; the store's TTL evicts abandoned state.
type Manager struct {
	store  Store
	cookie string
	secure bool
}

func NewManager(store Store, cookieName string, secure bool) *Manager {
	return &Manager{store: store, cookie: cookieName, secure: secure}
}

func (m *Manager) Store() Store {
	return m.store
}

// Load returns the session id and state of r. A missing, malformed or
// expired cookie yields an empty id and a zero State.
func (m *Manager) Load(r *http.Request) (string, State, error) {
	c, err := r.Cookie(m.cookie)
	if err != nil {
		return "", State{}, nil
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", State{}, nil
	}
	st, ok, err := m.store.Get(r.Context(), id.String())
	if err != nil {
		return "", State{}, err
	}
	if !ok {
		return "", State{}, nil
	}
	return id.String(), st, nil
}

// Save stores st under id, issuing a fresh id and cookie when id is empty.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, id string, st State) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := m.store.Put(r.Context(), id, st); err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// RunSweeper evicts expired sessions every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := m.store.Sweep(ctx, now)
			if err != nil {
				slog.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
