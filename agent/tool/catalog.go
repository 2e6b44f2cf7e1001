package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	enquiryx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/enquiry"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

const (
	ToolGetRestaurant          = "getRestaurant"
	ToolGetRestaurantFoodItems = "getRestaurantFoodItems"
	ToolSaySomething           = "saySomething"
	ToolSendAttachment         = "sendAttachment"
	ToolAskRestaurantQuestion  = "askRestaurantQuestion"
)

// Deps are the collaborators behind the tool surface. Every handler also
// receives the explicit invocation context; nothing reads ambient state.
type Deps struct {
	Restaurants contractx.RestaurantReader
	Dispatcher  contractx.Dispatcher
	Ledger      *enquiryx.Ledger
}

func (d Deps) validate() error {
	if d.Restaurants == nil {
		return errors.New("restaurant reader is required")
	}
	if d.Dispatcher == nil {
		return errors.New("dispatcher is required")
	}
	if d.Ledger == nil {
		return errors.New("escalation ledger is required")
	}
	return nil
}

// Infos declares the fixed tool set exposed to every generation pass.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name:        ToolGetRestaurant,
			Desc:        "Look up the restaurant's public profile: name, description, opening hours, fulfillment policy and delivery zones.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name:        ToolGetRestaurantFoodItems,
			Desc:        "Look up the restaurant's current menu items with prices and availability.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolSaySomething,
			Desc: "Send an interim, in-character message to the customer before the final reply is ready.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"message": {Type: schema.String, Desc: "Message to send right now", Required: true},
			}),
		},
		{
			Name: ToolSendAttachment,
			Desc: "Send a stored file, for example a menu image, to the customer.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"file_key":  {Type: schema.String, Desc: "Storage key of the file", Required: true},
				"file_name": {Type: schema.String, Desc: "File name shown to the customer", Required: true},
				"caption":   {Type: schema.String, Desc: "Optional caption", Required: false},
			}),
		},
		{
			Name: ToolAskRestaurantQuestion,
			Desc: "Forward a question you cannot answer confidently to the restaurant staff. Returns a confirmation; tell the customer the question has been forwarded.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"question": {Type: schema.String, Desc: "The question for the restaurant staff", Required: true},
			}),
		},
	}
}

// NewExecutor builds the dispatcher for the fixed tool set. Handler failures
// come back through ToolResult.Error so the model can adapt its reply; only
// broken wiring returns a Go error.
func NewExecutor(deps Deps) (contractx.ToolExecutor, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return func(ctx context.Context, tc contractx.ToolContext, tool string, args map[string]any) (contractx.ToolResult, error) {
		var (
			out contractx.ToolResult
			err error
		)
		switch tool {
		case ToolGetRestaurant:
			out, err = executeGetRestaurant(ctx, deps, tc)
		case ToolGetRestaurantFoodItems:
			out, err = executeGetRestaurantFoodItems(ctx, deps, tc)
		case ToolSaySomething:
			out, err = executeSaySomething(ctx, deps, tc, args)
		case ToolSendAttachment:
			out, err = executeSendAttachment(ctx, deps, tc, args)
		case ToolAskRestaurantQuestion:
			out, err = executeAskRestaurantQuestion(ctx, deps, tc, args)
		default:
			out = contractx.ToolResult{
				Tool:  tool,
				Error: fmt.Sprintf("tool=%s is not part of the catalog", tool),
			}
		}

		outcome := "ok"
		if err != nil || out.Error != "" {
			outcome = "error"
		}
		metricsx.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
		return out, err
	}, nil
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
