package mcp

import (
	"context"
	"encoding/json"
)

type clearFunctionArgs struct {
	Function string `json:"function"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"cache_stats":          handleStats,
	"cache_clear_all":      handleClearAll,
	"cache_clear_function": handleClearFunction,
	"cache_clean_expired":  handleCleanExpired,
	"cache_warmup":         handleWarmup,
}

var emptySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "cache_stats",
		Description: "Show cached AI response statistics: total entries, total hits and per-function counts.",
		InputSchema: emptySchema,
	},
	{
		Name:        "cache_clear_all",
		Description: "Delete every cached AI response. Returns the number of entries removed.",
		InputSchema: emptySchema,
	},
	{
		Name:        "cache_clear_function",
		Description: "Delete every cached response of one AI function, e.g. after its prompt changed.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"function"},
			"properties": map[string]any{
				"function": map[string]any{
					"type":        "string",
					"description": "Function name, e.g. opponentAnalysis",
				},
			},
		},
	},
	{
		Name:        "cache_clean_expired",
		Description: "Physically remove expired entries. Safe to run at any time.",
		InputSchema: emptySchema,
	},
	{
		Name:        "cache_warmup",
		Description: "Pre-compute the configured warmup jobs. Returns success, failure and skipped counts.",
		InputSchema: emptySchema,
	},
}

func textResult(text string, structured any) ToolCallResult {
	return ToolCallResult{
		Content:           []ContentBlock{{Type: "text", Text: text}},
		StructuredContent: structured,
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	stats, err := s.ops.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats), stats)
}

func handleClearAll(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	res, err := s.ops.ClearAll(ctx, actor)
	if err != nil {
		return errorResult("Error clearing cache: " + err.Error())
	}
	return textResult(formatInvalidation("Cleared", "", res), res)
}

func handleClearFunction(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args clearFunctionArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}
	if args.Function == "" {
		return errorResult("function is required")
	}
	res, err := s.ops.ClearFunction(ctx, actor, args.Function)
	if err != nil {
		return errorResult("Error clearing " + args.Function + ": " + err.Error())
	}
	return textResult(formatInvalidation("Cleared", args.Function, res), res)
}

func handleCleanExpired(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	res, err := s.ops.CleanExpired(ctx, actor)
	if err != nil {
		return errorResult("Error cleaning expired entries: " + err.Error())
	}
	return textResult(formatInvalidation("Removed expired", "", res), res)
}

func handleWarmup(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	res, err := s.ops.Warmup(ctx, actor)
	if err != nil {
		return errorResult("Warmup interrupted: " + err.Error() + "\n" + formatWarmup(res))
	}
	return textResult(formatWarmup(res), res)
}
