package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/semu/internal/ops"
)

var searchToolDef = mcp.NewTool("law_search",
	mcp.WithDescription("Search Korean tax statutes and case records (precedents, interpretations, "+
		"administrative adjudications, constitutional decisions). Returns the nearest text chunks "+
		"with metadata, most similar first. An index that was never built returns empty=true with a reason."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural-language question or keywords, e.g. 부가가치세 매입세액 공제 요건"),
	),
	mcp.WithNumber("k",
		mcp.Description("Number of results (default 5, max 50)"),
		mcp.Min(1),
		mcp.Max(ops.MaxQueryK),
	),
	mcp.WithString("collection",
		mcp.Description("Collection to search (default from config)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsToolDef = mcp.NewTool("law_stats",
	mcp.WithDescription("Summarize the index: chunk totals per law and per document type, "+
		"the embedder it was built with, and the last ingestion run."),
	mcp.WithString("collection",
		mcp.Description("Collection to summarize (default from config)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)
