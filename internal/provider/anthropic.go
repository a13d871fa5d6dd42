package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"copyforge/internal/config"
)

// Anthropic calls the Anthropic messages API. Rate limits and server errors
// come back wrapped in ErrTransient; other API errors are fatal for the
// requesting record.
type Anthropic struct {
	cfg    config.ProviderConfig
	apiKey string
	client *http.Client
}

// NewAnthropic builds a live client. The API key is read from the
// ANTHROPIC_API_KEY environment variable.
func NewAnthropic(cfg config.ProviderConfig, timeout time.Duration) (*Anthropic, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	return &Anthropic{
		cfg:    cfg,
		apiKey: key,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders the prompt for the request kind and performs one API
// call. Retrying is the caller's concern.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	system, user := buildPrompt(req)
	body, err := json.Marshal(anthropicRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("call messages api: %v: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %v: %w", err, ErrTransient)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed anthropicResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", fmt.Errorf("api status %d: %s: %w", resp.StatusCode, msg, ErrTransient)
		}
		return "", fmt.Errorf("api status %d: %s", resp.StatusCode, msg)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return sb.String(), nil
}

// buildPrompt renders the system and user prompts for one request kind.
func buildPrompt(req Request) (system, user string) {
	var sb strings.Builder
	switch req.Kind {
	case KindStrategy:
		system = "You are a senior performance marketer. Respond with a single JSON object " +
			`{"analysis": "...", "strategy": "..."} and nothing else.`
		fmt.Fprintf(&sb, "An ad is underperforming.\n")
		fmt.Fprintf(&sb, "Campaign: %s\nAd group: %s\nAd id: %s\n", req.Record.Campaign, req.Record.AdGroup, req.Record.AdID)
		fmt.Fprintf(&sb, "Current headline: %s\nCurrent description: %s\n", req.Record.Headline, req.Record.Description)
		fmt.Fprintf(&sb, "Diagnosed issues: %s\n", req.Issue)
		if req.MemoryContext != "" {
			fmt.Fprintf(&sb, "\nWhat we learned from earlier tests on this campaign:\n%s", req.MemoryContext)
		}
		sb.WriteString("\nDiagnose the likely root cause and propose one concrete creative strategy.")
	case KindHeadline:
		system = "You are an ad copywriter. Respond with a single JSON object " +
			`{"items": ["...", ...]} and nothing else.`
		fmt.Fprintf(&sb, "Write %d ad headlines, each at most %d characters.\n", req.Count, req.MaxChars)
		fmt.Fprintf(&sb, "Strategy: %s\n", req.Strategy)
		fmt.Fprintf(&sb, "Product context: campaign %q, ad group %q.\n", req.Record.Campaign, req.Record.AdGroup)
		fmt.Fprintf(&sb, "Current headline to improve on: %s\n", req.Record.Headline)
		if req.BrandVoice != "" {
			fmt.Fprintf(&sb, "Brand voice:\n%s\n", req.BrandVoice)
		}
		sb.WriteString("Avoid superlative claims. Plain sentence case. No exclamation spam.")
	case KindDescription:
		system = "You are an ad copywriter. Respond with a single JSON object " +
			`{"items": ["...", ...]} and nothing else.`
		fmt.Fprintf(&sb, "Write %d ad descriptions, each at most %d characters.\n", req.Count, req.MaxChars)
		fmt.Fprintf(&sb, "Strategy: %s\n", req.Strategy)
		fmt.Fprintf(&sb, "Product context: campaign %q, ad group %q.\n", req.Record.Campaign, req.Record.AdGroup)
		fmt.Fprintf(&sb, "Current description to improve on: %s\n", req.Record.Description)
		if req.BrandVoice != "" {
			fmt.Fprintf(&sb, "Brand voice:\n%s\n", req.BrandVoice)
		}
		sb.WriteString("Avoid superlative claims. Complete sentences.")
	case KindBrandVoice:
		system = "You are a brand strategist for ad copy. Respond with a single JSON object " +
			`{"guideline": "...", "examples": ["...", ...]} and nothing else.`
		sb.WriteString("Write a short brand voice guideline for ad copywriting.\n")
		fmt.Fprintf(&sb, "Campaign: %s\nAd group: %s\n", req.Record.Campaign, req.Record.AdGroup)
		fmt.Fprintf(&sb, "Tone: %s\nAudience: %s\n", req.Tone, req.Audience)
		if len(req.ForbiddenWords) > 0 {
			fmt.Fprintf(&sb, "Words to never use: %s\n", strings.Join(req.ForbiddenWords, ", "))
		}
		sb.WriteString("Keep the guideline to two sentences, with at most three example phrases.")
	case KindReview:
		system = "You are an ad policy reviewer. Respond with a single JSON object " +
			`{"violations": [{"type": "headline"|"description", "index": 0, "issue": "..."}]} ` +
			"and nothing else. An empty list means everything passes."
		sb.WriteString("Review this ad copy for policy problems such as unsubstantiated claims, ")
		sb.WriteString("misleading urgency, or trademark misuse.\n\nHeadlines:\n")
		for i, h := range req.Headlines {
			fmt.Fprintf(&sb, "%d. %s\n", i, h)
		}
		sb.WriteString("\nDescriptions:\n")
		for i, d := range req.Descriptions {
			fmt.Fprintf(&sb, "%d. %s\n", i, d)
		}
	}
	return system, sb.String()
}
