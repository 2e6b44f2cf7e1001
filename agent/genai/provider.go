package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

type Config struct {
	MaxSteps int `envconfig:"MAX_STEPS" split_words:"true" default:"6"`
}

// Provider implements the generation contract on an eino tool-calling chat
// model, with conversation memory persisted per thread. A thread id is
// opaque to callers; history replay is the provider's concern.
type Provider struct {
	model    einomodel.ToolCallingChatModel
	messages statex.MessageStore
	maxSteps int
	now      func() time.Time
}

func NewProvider(model einomodel.ToolCallingChatModel, messages statex.MessageStore, cfg Config) (*Provider, error) {
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if messages == nil {
		return nil, errors.New("message store is required")
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 6
	}
	return &Provider{
		model:    model,
		messages: messages,
		maxSteps: maxSteps,
		now:      time.Now,
	}, nil
}

func (p *Provider) CreateThread(ctx context.Context, title, summary, ownerKey string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%w: thread title is required", contractx.ErrValidation)
	}

	threadID := uuid.NewString()
	log.Debug().
		Str("thread_id", threadID).
		Str("title", title).
		Str("owner_key", ownerKey).
		Str("summary", summary).
		Msg("provider thread created")
	return threadID, nil
}

func (p *Provider) ContinueThread(ctx context.Context, threadID string) (contractx.ThreadHandle, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("%w: thread id is required", contractx.ErrThreadNotFound)
	}
	return &threadHandle{provider: p, threadID: threadID}, nil
}

type threadHandle struct {
	provider *Provider
	threadID string
}

// GenerateText runs one bounded tool-calling pass. Each model step either
// requests tools, which are executed synchronously in the requested order
// with results fed back before the next step, or produces the final text.
// When the step budget runs out the best text seen so far is returned with
// BudgetExhausted set; the caller decides whether to forward it.
func (h *threadHandle) GenerateText(ctx context.Context, in contractx.GenerationInput) (contractx.GenerationResult, error) {
	p := h.provider

	userPrompt := strings.TrimSpace(in.UserPrompt)
	if userPrompt == "" {
		return contractx.GenerationResult{}, fmt.Errorf("%w: user prompt is required", contractx.ErrValidation)
	}

	maxSteps := in.MaxSteps
	if maxSteps <= 0 {
		maxSteps = p.maxSteps
	}

	model := einomodel.BaseChatModel(p.model)
	if len(in.Tools) > 0 {
		if in.Execute == nil {
			return contractx.GenerationResult{}, fmt.Errorf("%w: tool set without executor", contractx.ErrValidation)
		}
		toolModel, err := p.model.WithTools(in.Tools)
		if err != nil {
			return contractx.GenerationResult{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
		}
		model = toolModel
	}

	history, err := h.loadHistory(ctx)
	if err != nil {
		return contractx.GenerationResult{}, err
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(in.SystemPrompt))
	msgs = append(msgs, history...)
	msgs = append(msgs, schema.UserMessage(userPrompt))

	pending := []*statex.ThreadMessage{h.record(string(schema.User), userPrompt, nil, "", "")}

	var lastText string
	steps := 0
	for steps < maxSteps {
		out, err := model.Generate(ctx, msgs)
		steps++
		if err != nil {
			return contractx.GenerationResult{}, fmt.Errorf("%w: generate step %d: %v", contractx.ErrModelInvoke, steps, err)
		}
		if out == nil {
			return contractx.GenerationResult{}, fmt.Errorf("%w: empty model message", contractx.ErrSchemaViolation)
		}

		msgs = append(msgs, out)
		pending = append(pending, h.recordAssistant(out))
		if text := strings.TrimSpace(out.Content); text != "" {
			lastText = text
		}

		if len(out.ToolCalls) == 0 {
			h.persist(ctx, pending)
			return contractx.GenerationResult{Text: lastText, Steps: steps}, nil
		}

		for _, call := range out.ToolCalls {
			toolMsg, rec, err := h.executeCall(ctx, in, call)
			if err != nil {
				return contractx.GenerationResult{}, err
			}
			msgs = append(msgs, toolMsg)
			pending = append(pending, rec)
		}
	}

	metricsx.StepBudgetExceededTotal.Inc()
	log.Warn().
		Str("thread_id", h.threadID).
		Int("steps", steps).
		Msg("generation pass hit step budget, forwarding best-effort output")

	h.persist(ctx, pending)
	return contractx.GenerationResult{Text: lastText, Steps: steps, BudgetExhausted: true}, nil
}

func (h *threadHandle) executeCall(ctx context.Context, in contractx.GenerationInput, call schema.ToolCall) (*schema.Message, *statex.ThreadMessage, error) {
	toolName := strings.TrimSpace(call.Function.Name)
	if toolName == "" {
		return nil, nil, fmt.Errorf("%w: tool call without a name", contractx.ErrSchemaViolation)
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, nil, fmt.Errorf("%w: invalid args for tool=%s: %v", contractx.ErrSchemaViolation, toolName, err)
		}
	}

	result, err := in.Execute(ctx, in.ToolContext, toolName, args)
	if err != nil {
		return nil, nil, fmt.Errorf("execute tool=%s: %w", toolName, err)
	}
	result.Tool = toolName

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: marshal result for tool=%s: %v", contractx.ErrValidation, toolName, err)
	}

	toolMsg := schema.ToolMessage(string(payload), call.ID)
	rec := h.record(string(schema.Tool), string(payload), nil, call.ID, toolName)
	return toolMsg, rec, nil
}

func (h *threadHandle) loadHistory(ctx context.Context) ([]*schema.Message, error) {
	stored, err := h.provider.messages.ThreadHistory(ctx, h.threadID)
	if err != nil {
		return nil, err
	}

	msgs := make([]*schema.Message, 0, len(stored))
	for _, m := range stored {
		switch schema.RoleType(m.Role) {
		case schema.User:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case schema.Assistant:
			am := &schema.Message{Role: schema.Assistant, Content: m.Content}
			if len(m.ToolCalls) > 0 {
				if err := json.Unmarshal(m.ToolCalls, &am.ToolCalls); err != nil {
					return nil, fmt.Errorf("decode stored tool calls: %w", err)
				}
			}
			msgs = append(msgs, am)
		case schema.Tool:
			msgs = append(msgs, schema.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return msgs, nil
}

func (h *threadHandle) record(role, content string, toolCalls json.RawMessage, toolCallID, toolName string) *statex.ThreadMessage {
	return &statex.ThreadMessage{
		ThreadID:   h.threadID,
		Role:       role,
		Content:    content,
		ToolCalls:  toolCalls,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		CreatedAt:  h.provider.now().UTC(),
	}
}

func (h *threadHandle) recordAssistant(out *schema.Message) *statex.ThreadMessage {
	var raw json.RawMessage
	if len(out.ToolCalls) > 0 {
		if encoded, err := json.Marshal(out.ToolCalls); err == nil {
			raw = encoded
		}
	}
	return h.record(string(schema.Assistant), out.Content, raw, "", "")
}

// persist is best-effort: losing memory degrades later turns but the current
// reply is already computed, so the failure is alerted rather than returned.
func (h *threadHandle) persist(ctx context.Context, pending []*statex.ThreadMessage) {
	if err := h.provider.messages.AppendMessages(ctx, pending); err != nil {
		log.Error().Err(err).Str("thread_id", h.threadID).Msg("persist thread memory failed")
	}
}
