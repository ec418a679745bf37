package memory

import (
	"time"

	"telemed-recording-be/internal/entity"

	gocache "github.com/patrickmn/go-cache"
)

// StatusCache keeps recently read sessions so that status polling from
// two clients does not hit the database on every request. Entries are
// short lived and explicitly invalidated on every write path.
type StatusCache struct {
	cache *gocache.Cache
}

func NewStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *StatusCache) Get(sessionId string) (*entity.RecordingSession, bool) {
	v, ok := c.cache.Get(sessionId)
	if !ok {
		return nil, false
	}
	session, ok := v.(*entity.RecordingSession)
	return session, ok
}

func (c *StatusCache) Set(session *entity.RecordingSession) {
	c.cache.SetDefault(session.Id.String(), session)
}

func (c *StatusCache) Invalidate(sessionId string) {
	c.cache.Delete(sessionId)
}
