package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

// turnState threads one inbound turn through the graph. Once Dropped is set
// the remaining nodes pass the state through untouched.
type turnState struct {
	Event contractx.InboundMessageEvent
	Now   time.Time

	Dropped    bool
	DropReason string

	Agent    *statex.Agent
	Profile  *contractx.RestaurantProfile
	ThreadID string

	Result contractx.GenerationResult
}

func (o *Orchestrator) compileInboundTurnGraph(
	ctx context.Context,
) (compose.Runnable[contractx.InboundMessageEvent, TurnOutput], error) {
	graph := compose.NewGraph[contractx.InboundMessageEvent, TurnOutput]()

	if err := graph.AddLambdaNode("validate_event",
		compose.InvokableLambda(func(ctx context.Context, ev contractx.InboundMessageEvent) (*turnState, error) {
			return o.validateEvent(ev)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_event: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_agent",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.resolveAgent(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_agent: %w", err)
	}

	if err := graph.AddLambdaNode("load_restaurant_profile",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.loadRestaurantProfile(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_restaurant_profile: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_thread",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.resolveThread(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_thread: %w", err)
	}

	if err := graph.AddLambdaNode("run_generation",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.runGeneration(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_generation: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_reply",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (TurnOutput, error) {
			return o.dispatchReply(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_event"},
		{"validate_event", "resolve_agent"},
		{"resolve_agent", "load_restaurant_profile"},
		{"load_restaurant_profile", "resolve_thread"},
		{"resolve_thread", "run_generation"},
		{"run_generation", "dispatch_reply"},
		{"dispatch_reply", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.inbound_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile inbound turn graph: %w", err)
	}
	return runner, nil
}

func (o *Orchestrator) validateEvent(ev contractx.InboundMessageEvent) (*turnState, error) {
	st := &turnState{Event: ev, Now: o.now().UTC()}

	if strings.TrimSpace(ev.ExternalAccountID) == "" || strings.TrimSpace(ev.ChatID) == "" {
		return nil, fmt.Errorf("%w: chat id and external account id are required", contractx.ErrValidation)
	}

	// The agent does not operate in group conversations.
	if ev.IsGroup {
		return drop(st, "group_chat"), nil
	}
	if strings.TrimSpace(ev.Sender.ExternalContactID) == "" {
		return drop(st, "missing_contact"), nil
	}
	if strings.TrimSpace(ev.Message) == "" {
		return drop(st, "empty_message"), nil
	}
	return st, nil
}

func (o *Orchestrator) resolveAgent(ctx context.Context, in *turnState) (*turnState, error) {
	if in.Dropped {
		return in, nil
	}

	ag, err := o.agents.GetAgentByExternalAccountID(ctx, in.Event.ExternalAccountID)
	if err != nil {
		if errors.Is(err, contractx.ErrAgentNotFound) {
			log.Warn().
				Str("external_account_id", in.Event.ExternalAccountID).
				Msg("message for unknown agent dropped")
			return drop(in, "unknown_agent"), nil
		}
		return nil, err
	}

	for _, excluded := range ag.ExcludedContacts {
		if excluded == in.Event.Sender.ExternalContactID {
			return drop(in, "excluded_contact"), nil
		}
	}

	in.Agent = ag
	return in, nil
}

func (o *Orchestrator) loadRestaurantProfile(ctx context.Context, in *turnState) (*turnState, error) {
	if in.Dropped {
		return in, nil
	}
	in.Profile = o.loadProfile(ctx, in.Agent.RestaurantID)
	return in, nil
}

func (o *Orchestrator) resolveThread(ctx context.Context, in *turnState) (*turnState, error) {
	if in.Dropped {
		return in, nil
	}

	threadID, err := o.registry.Resolve(ctx, in.Agent, in.Event.Sender.ExternalContactID, in.Event.Sender.DisplayName)
	if err != nil {
		return nil, err
	}
	in.ThreadID = threadID
	return in, nil
}

func (o *Orchestrator) runGeneration(ctx context.Context, in *turnState) (*turnState, error) {
	if in.Dropped {
		return in, nil
	}

	handle, err := o.provider.ContinueThread(ctx, in.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("continue thread: %w", err)
	}

	result, err := handle.GenerateText(ctx, contractx.GenerationInput{
		SystemPrompt: o.prompts.RenderSystem(in.Agent, in.Profile),
		UserPrompt:   in.Event.Message,
		Tools:        o.tools,
		Execute:      o.execute,
		MaxSteps:     o.maxSteps,
		ToolContext: contractx.ToolContext{
			AgentID:        in.Agent.ID,
			ThreadID:       in.ThreadID,
			RestaurantID:   in.Agent.RestaurantID,
			ExternalChatID: in.Event.ChatID,
		},
	})
	if err != nil {
		return nil, err
	}
	in.Result = result
	return in, nil
}

func (o *Orchestrator) dispatchReply(ctx context.Context, in *turnState) (TurnOutput, error) {
	out := TurnOutput{
		Dropped:    in.Dropped,
		DropReason: in.DropReason,
		ThreadID:   in.ThreadID,
		Steps:      in.Result.Steps,
	}
	if in.Dropped {
		return out, nil
	}

	reply := strings.TrimSpace(in.Result.Text)
	out.Reply = reply
	if reply == "" {
		// A pass that ran out of budget mid-tool-call may have nothing to
		// forward; the overrun itself is already reported by the provider.
		log.Warn().
			Str("thread_id", in.ThreadID).
			Bool("budget_exhausted", in.Result.BudgetExhausted).
			Msg("turn produced no final text")
		return out, nil
	}

	if err := o.dispatcher.SendText(ctx, in.Event.ChatID, reply); err != nil {
		metricsx.OutboundSendsTotal.WithLabelValues("text", "error").Inc()
		return out, fmt.Errorf("dispatch reply: %w", err)
	}
	metricsx.OutboundSendsTotal.WithLabelValues("text", "ok").Inc()
	return out, nil
}

func drop(st *turnState, reason string) *turnState {
	st.Dropped = true
	st.DropReason = reason
	return st
}
