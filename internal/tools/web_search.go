package tools

import (
	"context"
	"fmt"
	"strings"
)

const (
	searchTimeoutSeconds = 15
	webSearchUserAgent   = "Mozilla/5.0 (compatible; tinyclaw-agent/1.0)"
	defaultSearchCount   = 5
)

// searchParams is the internal request shape every SearchProvider accepts.
type searchParams struct {
	Query string
	Count int
}

// searchResult is a single search hit.
type searchResult struct {
	Title       string
	URL         string
	Description string
}

// SearchProvider abstracts the backend a web_search tool call is routed
// to. duckDuckGoSearchProvider is the only one wired by default; a
// Brave or other provider can be substituted without touching the Tool.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, params searchParams) ([]searchResult, error)
}

// WebSearchTool performs a web search and returns formatted results.
type WebSearchTool struct {
	provider SearchProvider
}

// NewWebSearchTool builds a WebSearchTool over DuckDuckGo's HTML
// endpoint — no API key required.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{provider: newDuckDuckGoSearchProvider()}
}

func NewWebSearchToolWithProvider(p SearchProvider) *WebSearchTool {
	return &WebSearchTool{provider: p}
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Description() string { return "Search the web and return a short list of results." }
func (t *WebSearchTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "The search query."},
			"count": map[string]interface{}{"type": "integer", "description": "Number of results to return (default 5)."},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	count := defaultSearchCount
	if c, ok := args["count"].(float64); ok && c > 0 {
		count = int(c)
	}

	results, err := t.provider.Search(ctx, searchParams{Query: query, Count: count})
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
