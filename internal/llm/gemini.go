package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"aide/internal/config"
)

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	timeout   time.Duration
	maxTokens int32
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set AIDE_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	maxTokens := int32(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &GeminiClient{
		client:    client,
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends a single-turn prompt and returns the generated text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var sys *genai.Content
	if systemPrompt != "" {
		sys = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return c.generate(ctx, userPrompt, sys)
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, system *genai.Content) (string, error) {
	// Every call is timeout-bounded: a stuck provider call must not
	// block the agent.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens:   c.maxTokens,
		SystemInstruction: system,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
