package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/ops"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store  *vectorstore.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger discards output.
func NewHandlers(store *vectorstore.Store, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{store: store, cfg: cfg, logger: logger}
}

// SearchRequest represents the arguments for law_search.
type SearchRequest struct {
	Query      string `json:"query"`
	K          int    `json:"k,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// StatsRequest represents the arguments for law_stats.
type StatsRequest struct {
	Collection string `json:"collection,omitempty"`
}

// HandleSearch handles the law_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Query(ctx, h.store, h.cfg, h.logger, ops.QueryInput{
		Collection: input.Collection,
		Query:      input.Query,
		K:          input.K,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStats handles the law_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Stats(ctx, h.store, h.cfg, ops.StatsInput{Collection: input.Collection})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if sErr, ok := errors.As(err); ok {
		msg := sErr.Message
		// Keep wrapper context such as "batch 3: ..." unless internal
		if full := err.Error(); sErr.Code != errors.ErrInternal && full != sErr.Error() {
			msg = strings.Replace(full, sErr.Error(), sErr.Message, 1)
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": msg,
			"status":  sErr.Status,
		}
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
