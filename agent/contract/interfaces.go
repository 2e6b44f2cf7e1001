package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ToolExecutor runs one named tool with the explicit invocation context.
// Tool failures are reported through ToolResult.Error so the model can adapt;
// a non-nil error aborts the generation pass.
type ToolExecutor func(ctx context.Context, tc ToolContext, tool string, args map[string]any) (ToolResult, error)

// GenerationInput describes one bounded tool-calling pass.
type GenerationInput struct {
	SystemPrompt string
	UserPrompt   string
	Tools        []*schema.ToolInfo
	Execute      ToolExecutor
	ToolContext  ToolContext
	MaxSteps     int
}

// ThreadHandle is a reopened conversation thread on the generation provider.
type ThreadHandle interface {
	GenerateText(ctx context.Context, in GenerationInput) (GenerationResult, error)
}

// Generator is the generation-provider contract: provider-side conversation
// memory keyed by opaque thread ids, plus text generation over a tool set.
type Generator interface {
	CreateThread(ctx context.Context, title, summary, ownerKey string) (string, error)
	ContinueThread(ctx context.Context, threadID string) (ThreadHandle, error)
}

// Dispatcher transmits outbound messages on the external channel.
type Dispatcher interface {
	SendText(ctx context.Context, chatID, text string) error
	SendAttachment(ctx context.Context, chatID, fileKey, fileName, caption string) error
}

// RestaurantReader is the read-only contract onto the CRUD layer's
// restaurant and menu data.
type RestaurantReader interface {
	GetRestaurantProfile(ctx context.Context, restaurantID string) (*RestaurantProfile, error)
	GetMenuItems(ctx context.Context, restaurantID string) ([]MenuItem, error)
}
