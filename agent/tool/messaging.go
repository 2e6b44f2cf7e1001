package tool

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/metrics"
)

func executeSaySomething(ctx context.Context, deps Deps, tc contractx.ToolContext, args map[string]any) (contractx.ToolResult, error) {
	message := strings.TrimSpace(stringArg(args, "message"))
	if message == "" {
		return contractx.ToolResult{Tool: ToolSaySomething, Error: "message must not be empty"}, nil
	}

	if err := deps.Dispatcher.SendText(ctx, tc.ExternalChatID, message); err != nil {
		metricsx.OutboundSendsTotal.WithLabelValues("text", "error").Inc()
		return contractx.ToolResult{Tool: ToolSaySomething, Error: "message could not be delivered"}, nil
	}
	metricsx.OutboundSendsTotal.WithLabelValues("text", "ok").Inc()

	return contractx.ToolResult{Tool: ToolSaySomething, Result: "message sent to customer"}, nil
}

func executeSendAttachment(ctx context.Context, deps Deps, tc contractx.ToolContext, args map[string]any) (contractx.ToolResult, error) {
	fileKey := strings.TrimSpace(stringArg(args, "file_key"))
	fileName := strings.TrimSpace(stringArg(args, "file_name"))
	caption := strings.TrimSpace(stringArg(args, "caption"))
	if fileKey == "" || fileName == "" {
		return contractx.ToolResult{Tool: ToolSendAttachment, Error: "file_key and file_name are required"}, nil
	}

	if err := deps.Dispatcher.SendAttachment(ctx, tc.ExternalChatID, fileKey, fileName, caption); err != nil {
		metricsx.OutboundSendsTotal.WithLabelValues("attachment", "error").Inc()
		return contractx.ToolResult{Tool: ToolSendAttachment, Error: "attachment could not be delivered"}, nil
	}
	metricsx.OutboundSendsTotal.WithLabelValues("attachment", "ok").Inc()

	return contractx.ToolResult{Tool: ToolSendAttachment, Result: "attachment sent to customer"}, nil
}
