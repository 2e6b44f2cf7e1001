package threads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
)

// Registry resolves the canonical thread for an (agent, contact) pair.
// Creation is guarded twice: a per-pair mutex serializes in-process races,
// and the store's unique title constraint catches anything the mutex cannot
// see (e.g. a second instance). Either way exactly one thread survives.
type Registry struct {
	store    statex.ThreadStore
	provider contractx.Generator
	locks    *xsync.MapOf[string, *sync.Mutex]
	now      func() time.Time
}

func NewRegistry(store statex.ThreadStore, provider contractx.Generator) (*Registry, error) {
	if store == nil {
		return nil, errors.New("thread store is required")
	}
	if provider == nil {
		return nil, errors.New("generation provider is required")
	}
	return &Registry{
		store:    store,
		provider: provider,
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
		now:      time.Now,
	}, nil
}

// EncodeTitle builds the thread title that carries the (contact, agent) pair.
// Lookups key on this exact encoding, so it must stay stable.
func EncodeTitle(contactID, agentID string) string {
	return fmt.Sprintf("%s <> %s", contactID, agentID)
}

// Resolve returns the thread id for the pair, creating the thread on the
// generation provider on first contact.
func (r *Registry) Resolve(ctx context.Context, ag *statex.Agent, externalContactID, displayName string) (string, error) {
	if ag == nil {
		return "", fmt.Errorf("%w: agent is required", contractx.ErrValidation)
	}
	contactID := strings.TrimSpace(externalContactID)
	if contactID == "" {
		return "", fmt.Errorf("%w: external contact id is required", contractx.ErrValidation)
	}

	title := EncodeTitle(contactID, ag.ID)

	if rec, err := r.store.FindThreadByTitle(ctx, title); err == nil {
		return rec.ID, nil
	} else if !errors.Is(err, contractx.ErrThreadNotFound) {
		return "", err
	}

	mu, _ := r.locks.LoadOrCompute(title, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	defer mu.Unlock()

	// Re-check under the lock: a racing resolve may have created it.
	if rec, err := r.store.FindThreadByTitle(ctx, title); err == nil {
		return rec.ID, nil
	} else if !errors.Is(err, contractx.ErrThreadNotFound) {
		return "", err
	}

	summary := fmt.Sprintf("Conversation with %s", displayName)
	threadID, err := r.provider.CreateThread(ctx, title, summary, ag.ID)
	if err != nil {
		return "", fmt.Errorf("create provider thread: %w", err)
	}

	rec := &statex.ThreadRecord{
		ID:          threadID,
		AgentID:     ag.ID,
		ContactID:   contactID,
		Title:       title,
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.CreateThread(ctx, rec); err != nil {
		if errors.Is(err, contractx.ErrThreadExists) {
			// Lost the cross-instance race; the stored record is canonical.
			existing, findErr := r.store.FindThreadByTitle(ctx, title)
			if findErr != nil {
				return "", findErr
			}
			log.Warn().
				Str("agent_id", ag.ID).
				Str("contact_id", contactID).
				Str("thread_id", existing.ID).
				Msg("thread create conflict, reusing stored thread")
			return existing.ID, nil
		}
		return "", err
	}

	log.Info().
		Str("agent_id", ag.ID).
		Str("contact_id", contactID).
		Str("thread_id", threadID).
		Msg("thread created for first contact")
	return threadID, nil
}
