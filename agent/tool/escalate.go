package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

// executeAskRestaurantQuestion opens a pending enquiry. It does not message
// the customer itself; the generation loop phrases that notice in the
// agent's voice.
func executeAskRestaurantQuestion(ctx context.Context, deps Deps, tc contractx.ToolContext, args map[string]any) (contractx.ToolResult, error) {
	question := strings.TrimSpace(stringArg(args, "question"))
	if question == "" {
		return contractx.ToolResult{Tool: ToolAskRestaurantQuestion, Error: "question must not be empty"}, nil
	}

	en, err := deps.Ledger.Create(ctx, tc, question)
	if err != nil {
		return contractx.ToolResult{Tool: ToolAskRestaurantQuestion, Error: "the question could not be forwarded, try again later"}, nil
	}
	metricsx.EscalationsTotal.WithLabelValues("created").Inc()

	return contractx.ToolResult{
		Tool:   ToolAskRestaurantQuestion,
		Result: fmt.Sprintf("question forwarded to restaurant staff (reference %s); let the customer know you will come back once staff respond", en.ID),
	}, nil
}
