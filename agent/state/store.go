package state

import (
	"context"
	"time"
)

// AgentStore is the persistence contract for agent records.
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgentByExternalAccountID(ctx context.Context, externalAccountID string) (*Agent, error)
	SaveAgent(ctx context.Context, ag *Agent) error
}

// ThreadStore persists the (agent, contact) -> thread id mapping.
// CreateThread must fail with contract.ErrThreadExists when the encoded
// title is already taken, so callers re-lookup instead of forking the pair.
type ThreadStore interface {
	FindThreadByTitle(ctx context.Context, title string) (*ThreadRecord, error)
	CreateThread(ctx context.Context, rec *ThreadRecord) error
}

// EnquiryStore persists escalations. MarkResolved is conditional on the
// enquiry still being pending and reports contract.ErrEnquiryAlreadyResolved
// otherwise; this is what makes resolution effectively exactly-once.
type EnquiryStore interface {
	CreateEnquiry(ctx context.Context, en *Enquiry) error
	GetEnquiryByID(ctx context.Context, id string) (*Enquiry, error)
	MarkResolved(ctx context.Context, id, response, resolverID string, at time.Time) (*Enquiry, error)
	MarkClosed(ctx context.Context, id string, at time.Time) error
}

// MessageStore is the provider-side conversation memory.
type MessageStore interface {
	AppendMessages(ctx context.Context, msgs []*ThreadMessage) error
	ThreadHistory(ctx context.Context, threadID string) ([]*ThreadMessage, error)
}
