package genai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultModel   = "gemini-2.5-flash"
)

// ErrEmptyResponse is returned when the API answers but the text is empty,
// typically because a safety filter stripped the completion.
var ErrEmptyResponse = errors.New("API response text was empty or filtered")

// Completer is the narrow generative-text collaborator the socket handlers
// depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint. The default
// configuration targets Gemini's compatibility surface.
type Client struct {
	client *openai.Client
	model  string
}

// NewClientFromEnv builds a client from GEMINI_API_KEY, AI_BASE_URL and
// AI_MODEL. A missing key is logged, not fatal: requests will fail with a
// user-visible error string instead of taking the server down.
func NewClientFromEnv() *Client {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logrus.Warn("GEMINI_API_KEY environment variable not set. AI requests will fail.")
	}

	baseURL := os.Getenv("AI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := os.Getenv("AI_MODEL")
	if model == "" {
		model = defaultModel
	}

	return NewClient(apiKey, baseURL, model)
}

// NewClient builds a client for the given endpoint and model.
func NewClient(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete sends one prompt and returns the trimmed completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
