package service

import (
	"sync"

	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/pkg/assistant"
	"research-assistant-be/pkg/learning"
	"research-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// ISessionRegistry hands out the per-user in-memory session context,
// building it lazily on first use and after cache eviction.
type ISessionRegistry interface {
	Resolve(userId uuid.UUID) *store.SessionContext
	Shutdown()
}

type sessionRegistry struct {
	mu       sync.Mutex
	contexts *memory.ContextRepository

	resolver assistant.ProviderResolver
	defaults assistant.Defaults

	runner learning.StepRunner
	loader learning.SnapshotLoader
	sink   learning.InsightSink
}

func NewSessionRegistry(
	contexts *memory.ContextRepository,
	resolver assistant.ProviderResolver,
	defaults assistant.Defaults,
	runner learning.StepRunner,
	loader learning.SnapshotLoader,
	sink learning.InsightSink,
) ISessionRegistry {
	return &sessionRegistry{
		contexts: contexts,
		resolver: resolver,
		defaults: defaults,
		runner:   runner,
		loader:   loader,
		sink:     sink,
	}
}

func (r *sessionRegistry) Resolve(userId uuid.UUID) *store.SessionContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sc, ok := r.contexts.Get(userId.String()); ok {
		return sc
	}

	sc := &store.SessionContext{
		UserID:   userId.String(),
		Threads:  assistant.NewStore(r.resolver, r.defaults),
		Learning: learning.NewOrchestrator(r.runner, r.loader, r.sink),
	}
	r.contexts.Save(sc)
	return sc
}

func (r *sessionRegistry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts.Flush()
}
