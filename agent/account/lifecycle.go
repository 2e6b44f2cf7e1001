package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
)

const syncStatusSuccess = "SUCCESS"

// PairingCodeIssuer requests a fresh one-time pairing code from the channel
// provider for an agent that is reconnecting.
type PairingCodeIssuer interface {
	IssuePairingCode(ctx context.Context, externalAccountID string, channel contractx.ChannelType) (string, error)
}

// Manager applies channel account-status events to agent connection state.
// Transitions are idempotent so at-least-once webhook delivery is safe.
type Manager struct {
	agents statex.AgentStore
	pairer PairingCodeIssuer
	now    func() time.Time
}

func New(agents statex.AgentStore, pairer PairingCodeIssuer) (*Manager, error) {
	if agents == nil {
		return nil, errors.New("agent store is required")
	}
	return &Manager{
		agents: agents,
		pairer: pairer,
		now:    time.Now,
	}, nil
}

// HandleAccountEvent applies one account-status event. Events for unknown
// external accounts are logged and dropped: the channel may still emit events
// for accounts this system no longer tracks.
func (m *Manager) HandleAccountEvent(ctx context.Context, ev contractx.AccountStatusEvent) error {
	externalID := strings.TrimSpace(ev.ExternalAccountID)
	if externalID == "" {
		return fmt.Errorf("%w: external account id is required", contractx.ErrValidation)
	}

	ag, err := m.agents.GetAgentByExternalAccountID(ctx, externalID)
	if err != nil {
		if errors.Is(err, contractx.ErrAgentNotFound) {
			log.Warn().
				Str("external_account_id", externalID).
				Str("event_kind", string(ev.EventKind)).
				Msg("account event for unknown agent dropped")
			return nil
		}
		return err
	}

	switch ev.EventKind {
	case contractx.AccountCreationSuccess:
		return m.applyCreationSuccess(ctx, ag)
	case contractx.AccountSyncSuccess:
		return m.applySyncSuccess(ctx, ag)
	case contractx.AccountDeleted:
		return m.applyDeleted(ctx, ag)
	default:
		return fmt.Errorf("%w: unsupported account event kind=%q", contractx.ErrValidation, ev.EventKind)
	}
}

func (m *Manager) applyCreationSuccess(ctx context.Context, ag *statex.Agent) error {
	if ag.ConnectionState == contractx.AgentConnected {
		log.Debug().Str("agent_id", ag.ID).Msg("creation-success redelivered, already connected")
		return nil
	}

	ag.ConnectionState = contractx.AgentConnected
	ag.PairingCode = ""
	if err := m.agents.SaveAgent(ctx, ag); err != nil {
		return fmt.Errorf("persist connected state: %w", err)
	}

	log.Info().
		Str("agent_id", ag.ID).
		Str("channel", string(ag.ChannelType)).
		Msg("agent channel account connected")
	return nil
}

func (m *Manager) applySyncSuccess(ctx context.Context, ag *statex.Agent) error {
	now := m.now().UTC()
	ag.LastSyncStatus = syncStatusSuccess
	ag.LastSyncAt = &now
	if err := m.agents.SaveAgent(ctx, ag); err != nil {
		return fmt.Errorf("persist sync outcome: %w", err)
	}
	return nil
}

func (m *Manager) applyDeleted(ctx context.Context, ag *statex.Agent) error {
	if ag.ConnectionState == contractx.AgentDisconnected {
		return nil
	}

	ag.ConnectionState = contractx.AgentDisconnected
	ag.PairingCode = ""
	if err := m.agents.SaveAgent(ctx, ag); err != nil {
		return fmt.Errorf("persist disconnected state: %w", err)
	}

	log.Info().Str("agent_id", ag.ID).Msg("agent channel account removed")
	return nil
}

// Reconnect issues a fresh pairing code for a disconnected (or still pending)
// agent and returns it to the pending state. Connected agents must be
// disconnected by the channel first.
func (m *Manager) Reconnect(ctx context.Context, agentID string) (string, error) {
	if m.pairer == nil {
		return "", errors.New("pairing code issuer is not configured")
	}

	ag, err := m.agents.GetAgent(ctx, agentID)
	if err != nil {
		return "", err
	}
	if ag.ConnectionState == contractx.AgentConnected {
		return "", fmt.Errorf("%w: agent is connected, disconnect first", contractx.ErrInvalidTransition)
	}

	code, err := m.pairer.IssuePairingCode(ctx, ag.ExternalAccountID, ag.ChannelType)
	if err != nil {
		return "", fmt.Errorf("issue pairing code: %w", err)
	}

	ag.ConnectionState = contractx.AgentPending
	ag.PairingCode = code
	if err := m.agents.SaveAgent(ctx, ag); err != nil {
		return "", fmt.Errorf("persist pending state: %w", err)
	}

	log.Info().Str("agent_id", ag.ID).Msg("pairing code reissued, agent pending")
	return code, nil
}
