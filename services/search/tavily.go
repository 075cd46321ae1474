// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("oracle.search")

// DefaultBaseURL is the public Tavily API endpoint.
const DefaultBaseURL = "https://api.tavily.com"

// racingDomains restricts condition searches to Japanese racing sites.
var racingDomains = []string{
	"jra.go.jp",
	"netkeiba.com",
	"keiba.go.jp",
	"racing.yahoo.co.jp",
}

// contentTruncation caps how much of each result's content is folded
// into the formatted text handed to the model.
const contentTruncation = 500

// TavilyClient is a Client backed by the Tavily search API.
//
// Thread Safety:
//
//	Safe for concurrent use. Requests share one rate limiter so bursts
//	across concurrent runs stay within the provider's limits.
type TavilyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

// Option configures a TavilyClient.
type Option func(*TavilyClient)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *TavilyClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *TavilyClient) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewTavilyClient builds a client from TAVILY_API_KEY.
//
// Outputs:
//
//	*TavilyClient - The configured client.
//	error - Non-nil if no API key is available.
func NewTavilyClient(opts ...Option) (*TavilyClient, error) {
	apiKey := os.Getenv("TAVILY_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY environment variable not set")
	}
	c := &TavilyClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	slog.Info("Initializing Tavily client", "base_url", c.baseURL)
	return c, nil
}

// SearchConditions implements the Client interface.
func (c *TavilyClient) SearchConditions(ctx context.Context, query string) (string, error) {
	return c.search(ctx, tavilyRequest{
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     5,
		IncludeDomains: racingDomains,
	})
}

// SearchHorse implements the Client interface.
func (c *TavilyClient) SearchHorse(ctx context.Context, horseName string) (string, error) {
	return c.search(ctx, tavilyRequest{
		Query:          fmt.Sprintf("%s horse racing Japan performance history", horseName),
		SearchDepth:    "advanced",
		MaxResults:     3,
		IncludeDomains: []string{"netkeiba.com", "jra.go.jp"},
	})
}

func (c *TavilyClient) search(ctx context.Context, q tavilyRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "TavilyClient.search",
		trace.WithAttributes(attribute.String("search.query", q.Query)),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("search rate limit wait: %w", err)
	}

	q.APIKey = c.apiKey
	body, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("unmarshal search response: %w", err)
	}

	return formatResults(decoded.Results), nil
}

// formatResults renders results as the provenance-bearing text the
// gatherer consumes. Each block carries a "Source: <URI>" line.
func formatResults(results []tavilyResult) string {
	if len(results) == 0 {
		return "No results found for the query."
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		url := r.URL
		if url == "" {
			url = "No URL"
		}
		content := r.Content
		if len(content) > contentTruncation {
			content = content[:contentTruncation] + "..."
		}
		blocks = append(blocks, fmt.Sprintf("**%s**\nSource: %s\nContent: %s\n", title, url, content))
	}
	return strings.Join(blocks, "\n---\n")
}
