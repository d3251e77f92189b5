package repofake

import (
	"sync"

	"github.com/jrsteele09/go-oauth-provider/users"
)

// FakeUserRepo is a thread-safe in-memory users.Store used by the server
// bootstrap and by tests.
type FakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*users.AuthenticatedUser

	// PersistCalls counts Persist checkpoints, handy in tests.
	PersistCalls int
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[string]*users.AuthenticatedUser)}
}

// Upsert stores a fully populated user, for test seeding.
func (r *FakeUserRepo) Upsert(user *users.AuthenticatedUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	copied.GrantedScopes = append([]string(nil), user.GrantedScopes...)
	r.users[user.ID] = &copied
}

func (r *FakeUserRepo) FindUser(id string) (*users.AuthenticatedUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return r.copyOf(user), nil
}

func (r *FakeUserRepo) CreateUser(id string) (*users.AuthenticatedUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[id]; ok {
		return r.copyOf(existing), nil
	}
	user := &users.AuthenticatedUser{ID: id}
	r.users[id] = user
	return r.copyOf(user), nil
}

func (r *FakeUserRepo) GrantScopes(id string, scopes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return users.ErrNotFound
	}
	user.GrantedScopes = append([]string(nil), scopes...)
	return nil
}

func (r *FakeUserRepo) RevokeScopes(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return users.ErrNotFound
	}
	user.GrantedScopes = nil
	return nil
}

func (r *FakeUserRepo) SetPendingCode(id, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return users.ErrNotFound
	}
	user.Code = code
	return nil
}

func (r *FakeUserRepo) ClearPendingCode(id string) error {
	return r.SetPendingCode(id, "")
}

func (r *FakeUserRepo) SetAccessToken(id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return users.ErrNotFound
	}
	user.AccessToken = token
	return nil
}

func (r *FakeUserRepo) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PersistCalls++
	return nil
}

func (r *FakeUserRepo) copyOf(user *users.AuthenticatedUser) *users.AuthenticatedUser {
	copied := *user
	copied.GrantedScopes = append([]string(nil), user.GrantedScopes...)
	return &copied
}
