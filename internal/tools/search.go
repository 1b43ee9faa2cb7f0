package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const (
	braveWebEndpoint   = "https://api.search.brave.com/res/v1/web/search"
	braveImageEndpoint = "https://api.search.brave.com/res/v1/images/search"
	searchTimeout      = 10 * time.Second
	searchResultLimit  = 5

	missingBraveKey = "web search is not configured: set api_keys.brave_search in config.yaml or BRAVE_SEARCH_API_KEY"
)

// SearchInput is the input for web_search and image_search.
type SearchInput struct {
	Query string `json:"query"`
}

// SearchResult is one hit returned by a search tool.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchOutput is the output of web_search and image_search.
type SearchOutput struct {
	Results []SearchResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func registerSearchTools(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	webSearch := genkit.DefineTool(g, "web_search",
		"Search the web and return up to 5 results with title, URL and snippet.",
		func(ctx *ai.ToolContext, input SearchInput) (SearchOutput, error) {
			key := reg.APIKeys["brave_search"]
			if key == "" {
				return SearchOutput{Error: reg.fail(ctx, "web_search", missingBraveKey)}, nil
			}
			if input.Query == "" {
				return SearchOutput{Error: reg.fail(ctx, "web_search", "query is required")}, nil
			}
			results, err := braveSearch(ctx, braveWebEndpoint, key, input.Query)
			if err != nil {
				return SearchOutput{Error: reg.fail(ctx, "web_search", err.Error())}, nil
			}
			return SearchOutput{Results: results}, nil
		},
	)

	imageSearch := genkit.DefineTool(g, "image_search",
		"Search the web for images and return up to 5 results with title and image URL.",
		func(ctx *ai.ToolContext, input SearchInput) (SearchOutput, error) {
			key := reg.APIKeys["brave_search"]
			if key == "" {
				return SearchOutput{Error: reg.fail(ctx, "image_search", missingBraveKey)}, nil
			}
			if input.Query == "" {
				return SearchOutput{Error: reg.fail(ctx, "image_search", "query is required")}, nil
			}
			results, err := braveImageSearch(ctx, braveImageEndpoint, key, input.Query)
			if err != nil {
				return SearchOutput{Error: reg.fail(ctx, "image_search", err.Error())}, nil
			}
			return SearchOutput{Results: results}, nil
		},
	)

	return []ai.ToolRef{webSearch, imageSearch}
}

// braveWebResponse matches the relevant fields of the web search API.
type braveWebResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// braveImageResponse matches the relevant fields of the image search API.
type braveImageResponse struct {
	Results []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Properties struct {
			ImageURL string `json:"url"`
		} `json:"properties"`
	} `json:"results"`
}

func braveGet(ctx context.Context, endpoint, key, query string) ([]byte, error) {
	reqURL := endpoint + "?q=" + url.QueryEscape(query) + fmt.Sprintf("&count=%d", searchResultLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", key)

	client := &http.Client{Timeout: searchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("brave API returned %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func braveSearch(ctx context.Context, endpoint, key, query string) ([]SearchResult, error) {
	body, err := braveGet(ctx, endpoint, key, query)
	if err != nil {
		return nil, err
	}
	var parsed braveWebResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse brave response: %w", err)
	}
	var results []SearchResult
	for _, r := range parsed.Web.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
		if len(results) >= searchResultLimit {
			break
		}
	}
	return results, nil
}

func braveImageSearch(ctx context.Context, endpoint, key, query string) ([]SearchResult, error) {
	body, err := braveGet(ctx, endpoint, key, query)
	if err != nil {
		return nil, err
	}
	var parsed braveImageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse brave image response: %w", err)
	}
	var results []SearchResult
	for _, r := range parsed.Results {
		u := r.Properties.ImageURL
		if u == "" {
			u = r.URL
		}
		results = append(results, SearchResult{Title: r.Title, URL: u})
		if len(results) >= searchResultLimit {
			break
		}
	}
	return results, nil
}
