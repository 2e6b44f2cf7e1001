package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	promptx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/prompt"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
	threadsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/threads"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

type Config struct {
	MaxSteps int `envconfig:"MAX_STEPS" split_words:"true" default:"6"`
}

// Orchestrator drives one bounded generation turn per inbound message or
// staff resolution. Each call is an independent, request-scoped task;
// concurrency lives across turns, never inside one.
type Orchestrator struct {
	agents      statex.AgentStore
	registry    *threadsx.Registry
	provider    contractx.Generator
	dispatcher  contractx.Dispatcher
	restaurants contractx.RestaurantReader
	tools       []*schema.ToolInfo
	execute     contractx.ToolExecutor
	prompts     promptx.PromptSet

	graphRunner compose.Runnable[contractx.InboundMessageEvent, TurnOutput]

	maxSteps int
	now      func() time.Time
}

func New(
	agents statex.AgentStore,
	registry *threadsx.Registry,
	provider contractx.Generator,
	dispatcher contractx.Dispatcher,
	restaurants contractx.RestaurantReader,
	tools []*schema.ToolInfo,
	execute contractx.ToolExecutor,
	cfg Config,
) (*Orchestrator, error) {
	if agents == nil {
		return nil, errors.New("agent store is required")
	}
	if registry == nil {
		return nil, errors.New("thread registry is required")
	}
	if provider == nil {
		return nil, errors.New("generation provider is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if restaurants == nil {
		return nil, errors.New("restaurant reader is required")
	}
	if execute == nil {
		return nil, errors.New("tool executor is required")
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 6
	}

	o := &Orchestrator{
		agents:      agents,
		registry:    registry,
		provider:    provider,
		dispatcher:  dispatcher,
		restaurants: restaurants,
		tools:       tools,
		execute:     execute,
		prompts:     promptx.LoadPromptSet(),
		maxSteps:    maxSteps,
		now:         time.Now,
	}

	graphRunner, err := o.compileInboundTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// TurnOutput reports what one inbound turn did.
type TurnOutput struct {
	Dropped    bool
	DropReason string
	ThreadID   string
	Reply      string
	Steps      int
}

// HandleInbound runs one inbound-message turn.
func (o *Orchestrator) HandleInbound(ctx context.Context, ev contractx.InboundMessageEvent) (TurnOutput, error) {
	out, err := o.graphRunner.Invoke(ctx, ev)
	if err != nil {
		metricsx.TurnsTotal.WithLabelValues("inbound", "error").Inc()
		return TurnOutput{}, err
	}

	switch {
	case out.Dropped:
		metricsx.TurnsTotal.WithLabelValues("inbound", "dropped").Inc()
	default:
		metricsx.TurnsTotal.WithLabelValues("inbound", "ok").Inc()
	}
	return out, nil
}

// ResumeResolvedEnquiry runs the resumption turn after staff answer an
// enquiry: one generation pass over the same thread that synthesizes the
// staff answer in the agent's voice, dispatched to the stored chat id.
func (o *Orchestrator) ResumeResolvedEnquiry(ctx context.Context, en *statex.Enquiry, ag *statex.Agent) error {
	if en == nil || ag == nil {
		return fmt.Errorf("%w: enquiry and agent are required", contractx.ErrValidation)
	}

	handle, err := o.provider.ContinueThread(ctx, en.ThreadID)
	if err != nil {
		metricsx.TurnsTotal.WithLabelValues("resumption", "error").Inc()
		return fmt.Errorf("reopen thread: %w", err)
	}

	profile := o.loadProfile(ctx, ag.RestaurantID)

	result, err := handle.GenerateText(ctx, contractx.GenerationInput{
		SystemPrompt: o.prompts.RenderSystem(ag, profile),
		UserPrompt:   o.prompts.RenderResume(en.Question, en.Response),
		MaxSteps:     1,
		ToolContext: contractx.ToolContext{
			AgentID:        ag.ID,
			ThreadID:       en.ThreadID,
			RestaurantID:   ag.RestaurantID,
			ExternalChatID: en.ExternalChatID,
		},
	})
	if err != nil {
		metricsx.TurnsTotal.WithLabelValues("resumption", "error").Inc()
		return fmt.Errorf("resumption generation: %w", err)
	}

	reply := strings.TrimSpace(result.Text)
	if reply == "" {
		metricsx.TurnsTotal.WithLabelValues("resumption", "error").Inc()
		return fmt.Errorf("%w: resumption produced no text", contractx.ErrSchemaViolation)
	}

	if err := o.dispatcher.SendText(ctx, en.ExternalChatID, reply); err != nil {
		metricsx.OutboundSendsTotal.WithLabelValues("text", "error").Inc()
		metricsx.TurnsTotal.WithLabelValues("resumption", "error").Inc()
		return fmt.Errorf("dispatch resumption reply: %w", err)
	}
	metricsx.OutboundSendsTotal.WithLabelValues("text", "ok").Inc()
	metricsx.TurnsTotal.WithLabelValues("resumption", "ok").Inc()
	metricsx.EscalationsTotal.WithLabelValues("resumed").Inc()

	log.Info().
		Str("enquiry_id", en.ID).
		Str("thread_id", en.ThreadID).
		Str("chat_id", en.ExternalChatID).
		Msg("escalation answer synthesized and sent")
	return nil
}

func (o *Orchestrator) loadProfile(ctx context.Context, restaurantID string) *contractx.RestaurantProfile {
	profile, err := o.restaurants.GetRestaurantProfile(ctx, restaurantID)
	if err != nil {
		// Degraded turn: the model is told the data is unavailable.
		if !errors.Is(err, contractx.ErrRestaurantNotFound) {
			log.Error().Err(err).Str("restaurant_id", restaurantID).Msg("restaurant profile lookup failed")
		}
		return nil
	}
	return profile
}
