package memory

import (
	"time"

	"research-assistant-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type ContextRepository struct {
	cache *cache.Cache
}

func NewContextRepository() *ContextRepository {
	// Session contexts idle out after an hour; expired entries are
	// purged every 10 minutes and shut down on eviction so streaming
	// goroutines and learning runs do not outlive their owner.
	c := cache.New(1*time.Hour, 10*time.Minute)
	c.OnEvicted(func(_ string, value interface{}) {
		if sc, ok := value.(*store.SessionContext); ok {
			sc.Shutdown()
		}
	})
	return &ContextRepository{
		cache: c,
	}
}

func (r *ContextRepository) Save(sc *store.SessionContext) {
	r.cache.Set(sc.UserID, sc, cache.DefaultExpiration)
}

func (r *ContextRepository) Get(userID string) (*store.SessionContext, bool) {
	if x, found := r.cache.Get(userID); found {
		// Touch to keep actively used contexts alive.
		r.cache.Set(userID, x, cache.DefaultExpiration)
		return x.(*store.SessionContext), true
	}
	return nil, false
}

func (r *ContextRepository) Delete(userID string) {
	r.cache.Delete(userID)
}

// Flush shuts down and drops every context. Used on server shutdown.
func (r *ContextRepository) Flush() {
	for _, item := range r.cache.Items() {
		if sc, ok := item.Object.(*store.SessionContext); ok {
			sc.Shutdown()
		}
	}
	r.cache.Flush()
}
