package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/stellarlinkco/socbot/internal/config"
	"github.com/stellarlinkco/socbot/internal/splunk"
)

const (
	generateSystemPrompt = "You are a Splunk security analyst. Convert the user's question into a single SPL query. " +
		"Return only the SPL query and nothing else. Assume index=main when user does not specify an index."

	explainSystemPrompt = "You are a SOC assistant. Be concise, practical, and security-focused."
)

// chatCompletions is the slice of the OpenAI SDK the client uses,
// extracted so tests can swap in a fake.
type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client generates SPL from natural-language questions and summarizes
// search results for chat delivery.
type Client struct {
	completions chatCompletions
	model       string
}

func NewClient(cfg config.OpenAIConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = config.DefaultOpenAIModel
	}

	return &Client{
		completions: &client.Chat.Completions,
		model:       model,
	}, nil
}

// GenerateSPL turns a free-form security question into a single SPL
// query. The model output is normalized before use: the model is a
// suggestion engine here, not a trusted SPL source.
func (c *Client) GenerateSPL(ctx context.Context, question string) (string, error) {
	text, err := c.complete(ctx, generateSystemPrompt, question, 0.1)
	if err != nil {
		return "", fmt.Errorf("generate spl: %w", err)
	}
	return NormalizeSPL(text), nil
}

// ExplainResults asks for a triage summary of the capped rows: finding,
// risk level, recommended actions, confidence.
func (c *Client) ExplainResults(ctx context.Context, question, spl string, rows []splunk.Row) (string, error) {
	encoded, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}

	userPrompt := fmt.Sprintf(
		"User question: %s\n\n"+
			"SPL query used:\n%s\n\n"+
			"Splunk rows (JSON):\n%s\n\n"+
			"Provide:\n"+
			"1) short finding summary\n"+
			"2) risk level: Low/Medium/High\n"+
			"3) top 2-4 recommended actions\n"+
			"4) confidence note in one line.\n"+
			"Keep it concise and formatted for a chat message.",
		question, spl, encoded)

	text, err := c.complete(ctx, explainSystemPrompt, userPrompt, 0.2)
	if err != nil {
		return "", fmt.Errorf("explain results: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if supportsTemperature(c.model) {
		params.Temperature = openai.Float(temperature)
	}

	completion, err := c.completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion without choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// supportsTemperature reports whether the chat endpoint accepts a
// temperature parameter; gpt-5 models reject it.
func supportsTemperature(model string) bool {
	return !strings.HasPrefix(strings.ToLower(model), "gpt-5")
}
