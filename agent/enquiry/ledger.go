package enquiry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
)

// Resumer re-engages a paused thread after staff resolve an enquiry. The
// orchestrator implements this; the ledger only decides when it fires.
type Resumer interface {
	ResumeResolvedEnquiry(ctx context.Context, en *statex.Enquiry, ag *statex.Agent) error
}

// Notification describes a freshly created enquiry for staff delivery.
type Notification struct {
	EnquiryID         string `json:"enquiry_id"`
	AgentID           string `json:"agent_id"`
	RestaurantID      string `json:"restaurant_id"`
	Question          string `json:"question"`
	SupervisorContact string `json:"supervisor_contact,omitempty"`
}

// Notifier delivers enquiry notifications to restaurant staff out-of-band.
type Notifier interface {
	NotifyEnquiryCreated(ctx context.Context, n Notification) error
}

// Ledger records questions the agent could not answer and drives the
// human-in-the-loop round trip: create from inside a generation pass,
// resolve exactly once from a staff action, then resume the conversation.
type Ledger struct {
	store    statex.EnquiryStore
	agents   statex.AgentStore
	resumer  Resumer
	notifier Notifier
	now      func() time.Time
}

func NewLedger(store statex.EnquiryStore, agents statex.AgentStore) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("enquiry store is required")
	}
	if agents == nil {
		return nil, errors.New("agent store is required")
	}
	return &Ledger{
		store:  store,
		agents: agents,
		now:    time.Now,
	}, nil
}

// SetResumer wires the orchestrator in after construction; the orchestrator
// itself depends on the ledger through the tool surface.
func (l *Ledger) SetResumer(r Resumer) {
	l.resumer = r
}

func (l *Ledger) SetNotifier(n Notifier) {
	l.notifier = n
}

// Create opens a pending enquiry. Invoked only from the escalation tool, so
// the invocation context carries every identifier the resumption needs later.
func (l *Ledger) Create(ctx context.Context, tc contractx.ToolContext, question string) (*statex.Enquiry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", contractx.ErrValidation)
	}
	if tc.AgentID == "" || tc.ThreadID == "" || tc.ExternalChatID == "" {
		return nil, fmt.Errorf("%w: incomplete tool context for escalation", contractx.ErrValidation)
	}

	en := &statex.Enquiry{
		ID:             uuid.NewString(),
		ThreadID:       tc.ThreadID,
		AgentID:        tc.AgentID,
		RestaurantID:   tc.RestaurantID,
		Question:       question,
		ExternalChatID: tc.ExternalChatID,
		Status:         contractx.EnquiryPending,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.store.CreateEnquiry(ctx, en); err != nil {
		return nil, err
	}

	log.Info().
		Str("enquiry_id", en.ID).
		Str("agent_id", en.AgentID).
		Str("thread_id", en.ThreadID).
		Msg("enquiry escalated to staff")

	l.notify(ctx, en)
	return en, nil
}

// notify is fire-and-forget: losing a staff notification never fails the
// tool call that created the enquiry.
func (l *Ledger) notify(ctx context.Context, en *statex.Enquiry) {
	if l.notifier == nil {
		return
	}

	n := Notification{
		EnquiryID:    en.ID,
		AgentID:      en.AgentID,
		RestaurantID: en.RestaurantID,
		Question:     en.Question,
	}
	if ag, err := l.agents.GetAgent(ctx, en.AgentID); err == nil {
		n.SupervisorContact = ag.SupervisorContact
	}

	if err := l.notifier.NotifyEnquiryCreated(ctx, n); err != nil {
		log.Error().Err(err).Str("enquiry_id", en.ID).Msg("staff notification failed")
	}
}

// Resolve transitions a pending enquiry to resolved and triggers the
// resumption protocol exactly once. A second resolve reports
// contract.ErrEnquiryAlreadyResolved and has no side effects.
//
// Resumption failures do not roll back the resolve: ledger state is
// authoritative, losing the customer notification is alerted instead.
func (l *Ledger) Resolve(ctx context.Context, enquiryID, responseText, resolverID string) (*statex.Enquiry, error) {
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, fmt.Errorf("%w: response text is required", contractx.ErrValidation)
	}

	en, err := l.store.MarkResolved(ctx, enquiryID, responseText, resolverID, l.now().UTC())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("enquiry_id", en.ID).
		Str("resolver_id", resolverID).
		Msg("enquiry resolved by staff")

	l.resume(ctx, en)
	return en, nil
}

func (l *Ledger) resume(ctx context.Context, en *statex.Enquiry) {
	if l.resumer == nil {
		log.Error().Str("enquiry_id", en.ID).Msg("no resumer configured, customer not notified")
		return
	}

	ag, err := l.agents.GetAgent(ctx, en.AgentID)
	if err != nil {
		log.Error().Err(err).
			Str("enquiry_id", en.ID).
			Str("agent_id", en.AgentID).
			Msg("resumption skipped: owning agent unavailable")
		return
	}

	if err := l.resumer.ResumeResolvedEnquiry(ctx, en, ag); err != nil {
		log.Error().Err(err).
			Str("enquiry_id", en.ID).
			Msg("resumption failed, customer not notified")
	}
}

// Close archives a resolved enquiry. Closing anything but a resolved enquiry
// is an invalid transition: an unanswered question cannot be archived.
func (l *Ledger) Close(ctx context.Context, enquiryID string) error {
	return l.store.MarkClosed(ctx, enquiryID, l.now().UTC())
}

// Get returns one enquiry by id.
func (l *Ledger) Get(ctx context.Context, enquiryID string) (*statex.Enquiry, error) {
	return l.store.GetEnquiryByID(ctx, enquiryID)
}
