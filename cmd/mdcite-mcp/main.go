// mdcite-mcp exposes citation rewriting as an MCP tool over stdio.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dbh/mdcite/internal/batch"
	"github.com/dbh/mdcite/internal/citation"
	"github.com/dbh/mdcite/internal/logger"
	"github.com/dbh/mdcite/internal/markdown"
)

const version = "0.1.0"

func main() {
	// stdout carries the protocol, so logs go to stderr
	log, err := logger.New(logger.Config{
		Level:       os.Getenv("MDCITE_LOG_LEVEL"),
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdcite-mcp: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	s := newServer(log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("MCP server stopped", logger.Error(err))
		os.Exit(1)
	}
}

func newServer(log logger.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"mdcite",
		version,
		server.WithToolCapabilities(false),
	)
	s.AddTool(optimizeCitationsTool(), handleOptimizeCitations(log))
	return s
}

func optimizeCitationsTool() mcp.Tool {
	return mcp.NewTool("optimize_citations",
		mcp.WithDescription("Replace inline Markdown links and raw URLs with numbered citations and append a deduplicated References section. Reduces tokens in research documents before they are fed to a model."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The Markdown (or HTML) document to rewrite"),
		),
		mcp.WithBoolean("group_by_domain",
			mcp.Description("Group references under one heading per domain (default: true)"),
		),
		mcp.WithBoolean("keep_domain_names",
			mcp.Description("Keep existing host[n] citation markers intact (default: true)"),
		),
		mcp.WithString("html",
			mcp.Description("HTML ingestion: 'auto' (default, convert documents that look like HTML), 'always', or 'never'"),
			mcp.Enum(string(markdown.HTMLAuto), string(markdown.HTMLAlways), string(markdown.HTMLNever)),
		),
	)
}

func handleOptimizeCitations(log logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := request.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}

		mode, err := markdown.ParseHTMLMode(request.GetString("html", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		defaults := citation.DefaultOptions()
		res := batch.Process(batch.Document{Content: content}, batch.Options{
			Citation: citation.Options{
				GroupByDomain:   request.GetBool("group_by_domain", defaults.GroupByDomain),
				KeepDomainNames: request.GetBool("keep_domain_names", defaults.KeepDomainNames),
			},
			HTML: mode,
		})
		if res.Err != nil {
			log.Warn("HTML conversion failed", logger.Error(res.Err))
			return mcp.NewToolResultError(fmt.Sprintf("could not convert HTML input: %v", res.Err)), nil
		}

		log.Debug("Rewrote document",
			logger.Int("unique_urls", res.Rewrite.UniqueURLs),
			logger.Duration("elapsed", res.Elapsed),
		)

		text := fmt.Sprintf("%s\n---\nProcessed %d unique URLs. %s. %s",
			res.Rewrite.Text, res.Rewrite.UniqueURLs, res.Stats.Summary(), res.Stats.Sizes())
		return mcp.NewToolResultText(text), nil
	}
}
