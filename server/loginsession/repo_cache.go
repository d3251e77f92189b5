package loginsession

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheRepo is a TTL-bound in-memory Repo. Entries vanish on their own when
// the browser abandons the login or consent form, so nothing accumulates.
type CacheRepo struct {
	cache *gocache.Cache
}

// NewCacheRepo creates a repo whose entries live for ttl.
func NewCacheRepo(ttl time.Duration) *CacheRepo {
	return &CacheRepo{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *CacheRepo) Put(id string, session Session) {
	r.cache.Set(id, session, gocache.DefaultExpiration)
}

func (r *CacheRepo) Get(id string) (Session, error) {
	value, ok := r.cache.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	session, ok := value.(Session)
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (r *CacheRepo) Delete(id string) {
	r.cache.Delete(id)
}
