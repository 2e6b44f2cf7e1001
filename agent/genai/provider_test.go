package genai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
)

type fakeChatModel struct {
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

type fakeMessageStore struct {
	history   []*statex.ThreadMessage
	appended  []*statex.ThreadMessage
	appendErr error
}

func (f *fakeMessageStore) AppendMessages(ctx context.Context, msgs []*statex.ThreadMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, msgs...)
	return nil
}

func (f *fakeMessageStore) ThreadHistory(ctx context.Context, threadID string) ([]*statex.ThreadMessage, error) {
	return f.history, nil
}

func newTestHandle(t *testing.T, model *fakeChatModel, store *fakeMessageStore, maxSteps int) contractx.ThreadHandle {
	t.Helper()
	p, err := NewProvider(model, store, Config{MaxSteps: maxSteps})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	handle, err := p.ContinueThread(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("ContinueThread() error = %v", err)
	}
	return handle
}

func toolCatalog() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name:        "getRestaurant",
			Desc:        "restaurant profile lookup",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
	}
}

func TestGenerateTextPlainReply(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{
		responses: []*schema.Message{
			{Role: schema.Assistant, Content: "We open at 9am."},
		},
	}
	store := &fakeMessageStore{}
	handle := newTestHandle(t, model, store, 6)

	out, err := handle.GenerateText(context.Background(), contractx.GenerationInput{
		SystemPrompt: "you are a restaurant agent",
		UserPrompt:   "when do you open?",
	})
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if out.Text != "We open at 9am." {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.Steps != 1 || out.BudgetExhausted {
		t.Fatalf("unexpected pass outcome: %#v", out)
	}

	// User message plus assistant reply end up in thread memory.
	if len(store.appended) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(store.appended))
	}
	if store.appended[0].Role != string(schema.User) || store.appended[1].Role != string(schema.Assistant) {
		t.Fatalf("unexpected persisted roles: %s, %s", store.appended[0].Role, store.appended[1].Role)
	}
}

func TestGenerateTextValidatesInput(t *testing.T) {
	t.Parallel()

	handle := newTestHandle(t, &fakeChatModel{}, &fakeMessageStore{}, 6)

	_, err := handle.GenerateText(context.Background(), contractx.GenerationInput{UserPrompt: "   "})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty prompt, got %v", err)
	}

	_, err = handle.GenerateText(context.Background(), contractx.GenerationInput{
		UserPrompt: "hello",
		Tools:      toolCatalog(),
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for tools without executor, got %v", err)
	}
}

func TestGenerateTextExecutesToolsInOrder(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{ID: "call-1", Function: schema.FunctionCall{Name: "getRestaurant", Arguments: "{}"}},
					{ID: "call-2", Function: schema.FunctionCall{Name: "saySomething", Arguments: `{"message":"one moment"}`}},
				},
			},
			{Role: schema.Assistant, Content: "Here is what I found."},
		},
	}
	store := &fakeMessageStore{}
	handle := newTestHandle(t, model, store, 6)

	var executed []string
	execute := func(ctx context.Context, tc contractx.ToolContext, tool string, args map[string]any) (contractx.ToolResult, error) {
		executed = append(executed, tool)
		if tool == "saySomething" && args["message"] != "one moment" {
			t.Errorf("unexpected args for saySomething: %#v", args)
		}
		return contractx.ToolResult{Result: "ok"}, nil
	}

	out, err := handle.GenerateText(context.Background(), contractx.GenerationInput{
		SystemPrompt: "system",
		UserPrompt:   "tell me about the restaurant",
		Tools:        toolCatalog(),
		Execute:      execute,
	})
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if out.Text != "Here is what I found." {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.Steps != 2 {
		t.Fatalf("expected 2 steps, got %d", out.Steps)
	}
	if len(executed) != 2 || executed[0] != "getRestaurant" || executed[1] != "saySomething" {
		t.Fatalf("unexpected execution order: %#v", executed)
	}

	// The second model step must see both tool results fed back.
	second := model.inputs[1]
	toolMsgs := 0
	for _, msg := range second {
		if msg.Role == schema.Tool {
			toolMsgs++
		}
	}
	if toolMsgs != 2 {
		t.Fatalf("expected 2 tool messages in second step input, got %d", toolMsgs)
	}
}

func TestGenerateTextToolExecutorFailureAborts(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{ID: "call-1", Function: schema.FunctionCall{Name: "getRestaurant", Arguments: "{}"}},
				},
			},
		},
	}
	handle := newTestHandle(t, model, &fakeMessageStore{}, 6)

	execute := func(ctx context.Context, tc contractx.ToolContext, tool string, args map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{}, errors.New("broken wiring")
	}

	_, err := handle.GenerateText(context.Background(), contractx.GenerationInput{
		UserPrompt: "hello",
		Tools:      toolCatalog(),
		Execute:    execute,
	})
	if err == nil {
		t.Fatal("expected executor failure to abort the pass")
	}
}

func TestGenerateTextStepBudgetExhaustion(t *testing.T) {
	t.Parallel()

	// The model keeps requesting tools and never settles on a final reply.
	loop := &schema.Message{
		Role:    schema.Assistant,
		Content: "still checking",
		ToolCalls: []schema.ToolCall{
			{ID: "call-x", Function: schema.FunctionCall{Name: "getRestaurant", Arguments: "{}"}},
		},
	}
	model := &fakeChatModel{responses: []*schema.Message{loop, loop, loop, loop}}
	handle := newTestHandle(t, model, &fakeMessageStore{}, 2)

	execute := func(ctx context.Context, tc contractx.ToolContext, tool string, args map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{Result: "ok"}, nil
	}

	out, err := handle.GenerateText(context.Background(), contractx.GenerationInput{
		UserPrompt: "hello",
		Tools:      toolCatalog(),
		Execute:    execute,
	})
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if !out.BudgetExhausted {
		t.Fatal("expected BudgetExhausted")
	}
	if out.Steps != 2 {
		t.Fatalf("expected 2 steps, got %d", out.Steps)
	}
	if out.Text != "still checking" {
		t.Fatalf("expected best-effort text, got %q", out.Text)
	}
	if len(model.inputs) != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", len(model.inputs))
	}
}

func TestGenerateTextReplaysStoredHistory(t *testing.T) {
	t.Parallel()

	calls, err := json.Marshal([]schema.ToolCall{
		{ID: "call-9", Function: schema.FunctionCall{Name: "getRestaurant", Arguments: "{}"}},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	store := &fakeMessageStore{
		history: []*statex.ThreadMessage{
			{Role: string(schema.User), Content: "hi"},
			{Role: string(schema.Assistant), ToolCalls: calls},
			{Role: string(schema.Tool), Content: `{"tool":"getRestaurant"}`, ToolCallID: "call-9"},
			{Role: string(schema.Assistant), Content: "hello, how can I help?"},
		},
	}
	model := &fakeChatModel{
		responses: []*schema.Message{{Role: schema.Assistant, Content: "sure"}},
	}
	handle := newTestHandle(t, model, store, 6)

	if _, err := handle.GenerateText(context.Background(), contractx.GenerationInput{
		SystemPrompt: "system",
		UserPrompt:   "one more thing",
	}); err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}

	// system + 4 history entries + new user message
	in := model.inputs[0]
	if len(in) != 6 {
		t.Fatalf("expected 6 messages replayed to the model, got %d", len(in))
	}
	if in[0].Role != schema.System || in[len(in)-1].Content != "one more thing" {
		t.Fatalf("unexpected replay framing: first=%s last=%q", in[0].Role, in[len(in)-1].Content)
	}
	if len(in[2].ToolCalls) != 1 || in[2].ToolCalls[0].ID != "call-9" {
		t.Fatalf("stored tool calls not replayed: %#v", in[2].ToolCalls)
	}
}

func TestGenerateTextModelFailure(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{err: errors.New("upstream 500")}
	handle := newTestHandle(t, model, &fakeMessageStore{}, 6)

	_, err := handle.GenerateText(context.Background(), contractx.GenerationInput{UserPrompt: "hello"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestGenerateTextSurvivesPersistFailure(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{
		responses: []*schema.Message{{Role: schema.Assistant, Content: "done"}},
	}
	store := &fakeMessageStore{appendErr: errors.New("db down")}
	handle := newTestHandle(t, model, store, 6)

	out, err := handle.GenerateText(context.Background(), contractx.GenerationInput{UserPrompt: "hello"})
	if err != nil {
		t.Fatalf("persist failure must not fail the pass, got %v", err)
	}
	if out.Text != "done" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
}

func TestCreateThreadRequiresTitle(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(&fakeChatModel{}, &fakeMessageStore{}, Config{})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if _, err := p.CreateThread(context.Background(), "  ", "summary", "owner"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	id, err := p.CreateThread(context.Background(), "contact <> agent", "summary", "owner")
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected a thread id")
	}
}
