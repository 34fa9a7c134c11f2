package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// ErrNilConfig is returned when a nil config is provided.
var ErrNilConfig = errors.New("llm config is nil")

// ErrEmptyResponse is returned when the LLM returns no choices.
var ErrEmptyResponse = errors.New("llm returned empty response")

// ChatCaller sends menu photos through the chat-completions API.
type ChatCaller struct {
	client      *openai.Client
	label       string
	model       string
	maxTokens   int
	temperature float32
	jsonMode    bool
}

// NewChatCaller creates a chat-completions request variant.
func NewChatCaller(cfg *config.ProviderConfig, v config.VariantConfig) (*ChatCaller, error) {
	if err := checkProvider(cfg); err != nil {
		return nil, err
	}
	model := v.Model
	if model == "" {
		model = cfg.Model
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatCaller{
		client:      openai.NewClientWithConfig(clientCfg),
		label:       v.Label,
		model:       model,
		maxTokens:   v.MaxTokens,
		temperature: float32(v.Temperature),
		jsonMode:    v.JSONMode,
	}, nil
}

func checkProvider(cfg *config.ProviderConfig) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if cfg.BaseURL == "" {
		return errors.New("llm base_url is required")
	}
	if cfg.APIKey == "" {
		return errors.New("llm api_key is required")
	}
	if cfg.Model == "" {
		return errors.New("llm model is required")
	}
	return nil
}

// Label names the variant in logs and errors.
func (c *ChatCaller) Label() string { return c.label }

// Model returns the model the variant targets.
func (c *ChatCaller) Model() string { return c.model }

// Call sends the prompt and image as one user message. The first choice is
// returned re-decoded as generic JSON so the envelope walker can inspect it.
func (c *ChatCaller) Call(ctx context.Context, req extract.Request) (*extract.Envelope, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extract.SystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    DataURL(req.Image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxCompletionTokens: c.maxTokens,
		Temperature:         c.temperature,
	}
	if c.jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	body, err := generic(resp.Choices[0])
	if err != nil {
		return nil, fmt.Errorf("decode chat choice: %w", err)
	}
	return &extract.Envelope{
		Body: body,
		Usage: extract.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Truncated: resp.Choices[0].FinishReason == openai.FinishReasonLength,
	}, nil
}

// generic round-trips v through JSON into maps and slices.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
