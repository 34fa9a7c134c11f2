package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// ResponsesCaller sends menu photos through the responses API, optionally
// constrained by a JSON schema.
type ResponsesCaller struct {
	client      openai.Client
	label       string
	model       string
	maxTokens   int64
	temperature float64
	schema      bool
}

// NewResponsesCaller creates a responses-API request variant.
func NewResponsesCaller(cfg *config.ProviderConfig, v config.VariantConfig) (*ResponsesCaller, error) {
	if err := checkProvider(cfg); err != nil {
		return nil, err
	}
	model := v.Model
	if model == "" {
		model = cfg.Model
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	return &ResponsesCaller{
		client:      openai.NewClient(opts...),
		label:       v.Label,
		model:       model,
		maxTokens:   int64(v.MaxTokens),
		temperature: v.Temperature,
		schema:      v.Schema,
	}, nil
}

// Label names the variant in logs and errors.
func (c *ResponsesCaller) Label() string { return c.label }

// Model returns the model the variant targets.
func (c *ResponsesCaller) Model() string { return c.model }

// Call sends the prompt and image as one user input message. The envelope
// body is the raw response JSON.
func (c *ResponsesCaller) Call(ctx context.Context, req extract.Request) (*extract.Envelope, error) {
	content := responses.ResponseInputMessageContentListParam{
		{OfInputText: &responses.ResponseInputTextParam{Text: req.Prompt}},
		{OfInputImage: &responses.ResponseInputImageParam{
			ImageURL: openai.String(DataURL(req.Image)),
			Detail:   responses.ResponseInputImageDetailAuto,
		}},
	}

	params := responses.ResponseNewParams{
		Model:        c.model,
		Instructions: openai.String(extract.SystemPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if c.maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(c.maxTokens)
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.schema && req.Schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(req.Schema.Name, req.Schema.Body),
		}
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("responses create: %w", err)
	}

	var body any
	if err := json.Unmarshal([]byte(resp.RawJSON()), &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &extract.Envelope{
		Body: body,
		Usage: extract.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		Truncated: extract.IsTruncated(body),
	}, nil
}
