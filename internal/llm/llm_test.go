package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func fakeAPI(t *testing.T, path string, handle func(t *testing.T, body map[string]any) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(handle(t, body)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func provider(url string) *config.ProviderConfig {
	return &config.ProviderConfig{BaseURL: url + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"}
}

func TestChatCaller_Call(t *testing.T) {
	srv := fakeAPI(t, "/v1/chat/completions", func(t *testing.T, body map[string]any) any {
		assert.Equal(t, "gpt-4.1-mini", body["model"])
		assert.EqualValues(t, 900, body["max_completion_tokens"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		parts := msgs[1].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		assert.Equal(t, "list the dishes", parts[0].(map[string]any)["text"])
		url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), url)

		return map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4.1-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "length",
				"message":       map[string]any{"role": "assistant", "content": `{"items":[{"name":"Soup"}`},
			}},
			"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
		}
	})

	c, err := NewChatCaller(provider(srv.URL), config.VariantConfig{
		Label: "json_object", Model: "gpt-4.1-mini", MaxTokens: 900, JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "json_object", c.Label())

	env, err := c.Call(context.Background(), extract.Request{
		Prompt: "list the dishes",
		Image:  extract.Image{Data: pngHeader, MIMEType: "image/png"},
		Round:  1,
	})
	require.NoError(t, err)
	assert.True(t, env.Truncated)
	assert.Equal(t, extract.Usage{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}, env.Usage)

	text, ok := extract.ExtractText(env.Body)
	require.True(t, ok)
	assert.Equal(t, `{"items":[{"name":"Soup"}`, text)
}

func TestChatCaller_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c, err := NewChatCaller(provider(srv.URL), config.VariantConfig{Label: "x"})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), extract.Request{Prompt: "p", Image: extract.Image{Data: pngHeader}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion")
}

func TestResponsesCaller_Call(t *testing.T) {
	srv := fakeAPI(t, "/v1/responses", func(t *testing.T, body map[string]any) any {
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.EqualValues(t, 2000, body["max_output_tokens"])
		assert.Equal(t, extract.SystemPrompt, body["instructions"])

		format := body["text"].(map[string]any)["format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])
		assert.Equal(t, "menu_batch", format["name"])

		input := body["input"].([]any)
		require.Len(t, input, 1)
		parts := input[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		assert.Equal(t, "input_text", parts[0].(map[string]any)["type"])
		assert.Equal(t, "input_image", parts[1].(map[string]any)["type"])

		return map[string]any{
			"id":         "resp_1",
			"object":     "response",
			"created_at": 1,
			"model":      "gpt-4o-mini",
			"status":     "completed",
			"output": []any{map[string]any{
				"id":     "msg_1",
				"type":   "message",
				"role":   "assistant",
				"status": "completed",
				"content": []any{map[string]any{
					"type":        "output_text",
					"text":        `{"items":[{"name":"Tom Yum"}],"has_more":false}`,
					"annotations": []any{},
				}},
			}},
			"usage": map[string]any{
				"input_tokens":          20,
				"output_tokens":         9,
				"total_tokens":          29,
				"input_tokens_details":  map[string]any{"cached_tokens": 0},
				"output_tokens_details": map[string]any{"reasoning_tokens": 0},
			},
		}
	})

	c, err := NewResponsesCaller(provider(srv.URL), config.VariantConfig{
		Label: "responses_primary", MaxTokens: 2000, Schema: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model())

	env, err := c.Call(context.Background(), extract.Request{
		Prompt: "list the dishes",
		Image:  extract.Image{Data: pngHeader, MIMEType: "image/png"},
		Schema: extract.BatchSchema,
	})
	require.NoError(t, err)
	assert.False(t, env.Truncated)
	assert.Equal(t, 29, env.Usage.TotalTokens)

	text, ok := extract.ExtractText(env.Body)
	require.True(t, ok)
	assert.Equal(t, `{"items":[{"name":"Tom Yum"}],"has_more":false}`, text)
}

func TestNewCallers(t *testing.T) {
	cfg := &config.Config{LLM: config.ProviderConfig{
		BaseURL: "http://localhost/v1", APIKey: "sk", Model: "gpt-4o-mini", FallbackModel: "gpt-4.1",
	}}

	callers, err := NewCallers(cfg)
	require.NoError(t, err)
	require.Len(t, callers, 5)
	assert.IsType(t, &ChatCaller{}, callers[0])
	assert.IsType(t, &ResponsesCaller{}, callers[4])
	assert.Equal(t, "gpt-4.1", callers[2].(*ChatCaller).Model())

	cfg.Variants = []config.VariantConfig{{Label: "bad", API: "soap"}}
	_, err = NewCallers(cfg)
	assert.ErrorContains(t, err, `unknown api "soap"`)

	_, err = NewCallers(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	cfg.Variants = nil
	cfg.LLM.APIKey = ""
	_, err = NewCallers(cfg)
	assert.ErrorContains(t, err, "api_key")
}

func TestCleanBase64(t *testing.T) {
	assert.Equal(t, "QUJD", CleanBase64("data:image/jpeg;base64,QU\nJD "))
	assert.Equal(t, "QUJD", CleanBase64("  QUJD\n"))
}

func TestDecodeImage(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	img, err := DecodeImage("data:image/webp;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.MIMEType)
	assert.Equal(t, pngHeader, img.Data)

	img, err = DecodeImage(encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	_, err = DecodeImage("")
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = DecodeImage("not base64!")
	assert.Error(t, err)
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,QUJD", DataURL(extract.Image{Data: []byte("ABC")}))
	assert.Equal(t, "data:image/gif;base64,QUJD", DataURL(extract.Image{Data: []byte("ABC"), MIMEType: "image/gif"}))
}

func TestEmbedder(t *testing.T) {
	srv := fakeAPI(t, "/v1/embeddings", func(t *testing.T, body map[string]any) any {
		assert.Equal(t, []any{"pad thai", "tom yum"}, body["input"])
		assert.EqualValues(t, 2, body["dimensions"])
		return map[string]any{"data": []any{
			map[string]any{"index": 1, "embedding": []float32{0, 1, 9}},
			map[string]any{"index": 0, "embedding": []float32{1, 0, 9}},
		}}
	})

	cfg := provider(srv.URL)
	cfg.Dimensions = 2
	e, err := NewEmbedder(cfg)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"pad thai", "tom yum"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	_, err = NewEmbedder(nil)
	assert.ErrorIs(t, err, ErrNilEmbedConfig)
}

func TestEmbedder_ChunksDishDocuments(t *testing.T) {
	var batches [][]any
	srv := fakeAPI(t, "/v1/embeddings", func(t *testing.T, body map[string]any) any {
		input := body["input"].([]any)
		batches = append(batches, input)
		data := make([]any, len(input))
		for i, in := range input {
			data[i] = map[string]any{"index": i, "embedding": []float32{float32(len(in.(string)))}}
		}
		return map[string]any{"data": data}
	})

	e, err := NewEmbedder(provider(srv.URL))
	require.NoError(t, err)
	e.batch = 2

	vecs, err := e.EmbedBatch(context.Background(), []string{"Pad  Thai\n", "Tom Yum", "Green Curry"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{8}, {7}, {11}}, vecs)
	assert.Equal(t, [][]any{{"Pad Thai", "Tom Yum"}, {"Green Curry"}}, batches)
}

func TestEmbedder_MissingVector(t *testing.T) {
	srv := fakeAPI(t, "/v1/embeddings", func(t *testing.T, body map[string]any) any {
		return map[string]any{"data": []any{map[string]any{"index": 0, "embedding": []float32{1}}}}
	})
	e, err := NewEmbedder(provider(srv.URL))
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), []string{"Pad Thai", "Tom Yum"})
	assert.ErrorIs(t, err, ErrNoEmbedding)
	assert.Contains(t, err.Error(), "Tom Yum")
}

func TestDishInput(t *testing.T) {
	assert.Equal(t, "Pad Thai rice noodles", dishInput("  Pad Thai\n\trice   noodles "))
	long := dishInput(strings.Repeat("é", maxDishChars))
	assert.LessOrEqual(t, len(long), maxDishChars)
	assert.True(t, utf8.ValidString(long))
}
