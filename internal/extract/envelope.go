package extract

import (
	"encoding/json"
	"strings"
)

// payload is one of the shapes a model reply can carry its text in.
type payload interface {
	text() string
}

type (
	// plainText is a string content field.
	plainText string
	// partList is an array of content parts.
	partList []any
	// contentObject is an object content field exposing text or json.
	contentObject map[string]any
	// parsedField is a pre-parsed structured output.
	parsedField struct{ v any }
	// toolArguments holds function or tool call argument payloads.
	toolArguments []any
)

func (p plainText) text() string { return string(p) }

func (p partList) text() string {
	var sb strings.Builder
	for _, part := range p {
		sb.WriteString(partText(part))
	}
	return sb.String()
}

func partText(part any) string {
	switch v := part.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["text"].(string); ok {
			return s
		}
		if s, ok := v["value"].(string); ok {
			return s
		}
		if j, ok := v["json"]; ok && j != nil {
			return serialize(j)
		}
	}
	return ""
}

func (p contentObject) text() string {
	if s, ok := p["text"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := p["value"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if j, ok := p["json"]; ok && j != nil {
		return serialize(j)
	}
	return ""
}

func (p parsedField) text() string {
	if s, ok := p.v.(string); ok {
		return s
	}
	return serialize(p.v)
}

func (p toolArguments) text() string {
	var sb strings.Builder
	for _, a := range p {
		switch v := a.(type) {
		case string:
			sb.WriteString(v)
		case nil:
		default:
			sb.WriteString(serialize(v))
		}
	}
	return sb.String()
}

func serialize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ExtractText pulls the textual payload out of a model response envelope.
// It accepts a chat-completion response or choice, a responses-API response,
// a bare message object or a plain string. It reports false when no text is
// recoverable, which callers treat as "try the next request variant".
func ExtractText(envelope any) (string, bool) {
	for _, p := range payloadsOf(envelope) {
		if s := strings.TrimSpace(p.text()); s != "" {
			return s, true
		}
	}
	return "", false
}

// payloadsOf lists the candidate payloads of an envelope in priority order.
func payloadsOf(envelope any) []payload {
	switch v := envelope.(type) {
	case string:
		return []payload{plainText(v)}
	case map[string]any:
		if choices, ok := v["choices"].([]any); ok && len(choices) > 0 {
			return payloadsOf(choices[0])
		}
		if output, ok := v["output"].([]any); ok {
			return responsesPayloads(v, output)
		}
		if msg, ok := v["message"]; ok && msg != nil {
			ps := payloadsOf(msg)
			if s, ok := v["text"].(string); ok {
				ps = append([]payload{plainText(s)}, ps...)
			}
			return ps
		}
		return messagePayloads(v)
	}
	return nil
}

func messagePayloads(msg map[string]any) []payload {
	var ps []payload

	content, hasContent := msg["content"]
	if !hasContent || content == nil {
		content = msg["text"]
	}
	switch c := content.(type) {
	case string:
		ps = append(ps, plainText(c))
	case []any:
		ps = append(ps, partList(c))
	case map[string]any:
		ps = append(ps, contentObject(c))
	}

	if parsed, ok := msg["parsed"]; ok && parsed != nil {
		ps = append(ps, parsedField{v: parsed})
	}

	var args []any
	if calls, ok := msg["tool_calls"].([]any); ok {
		for _, call := range calls {
			if fn, ok := mapAt(call, "function"); ok {
				args = append(args, fn["arguments"])
			}
		}
	}
	if fn, ok := msg["function_call"].(map[string]any); ok {
		args = append(args, fn["arguments"])
	}
	if len(args) > 0 {
		ps = append(ps, toolArguments(args))
	}
	return ps
}

func responsesPayloads(resp map[string]any, output []any) []payload {
	var parts, args []any
	for _, entry := range output {
		e, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		switch c := e["content"].(type) {
		case []any:
			parts = append(parts, c...)
		case string:
			parts = append(parts, c)
		}
		if t, _ := e["type"].(string); t == "function_call" {
			args = append(args, e["arguments"])
		}
	}

	var ps []payload
	if s, ok := resp["output_text"].(string); ok {
		ps = append(ps, plainText(s))
	}
	ps = append(ps, partList(parts))
	if parsed, ok := resp["output_parsed"]; ok && parsed != nil {
		ps = append(ps, parsedField{v: parsed})
	}
	if len(args) > 0 {
		ps = append(ps, toolArguments(args))
	}
	return ps
}

// IsTruncated reports whether the envelope says the model stopped because it
// ran out of output tokens.
func IsTruncated(envelope any) bool {
	v, ok := envelope.(map[string]any)
	if !ok {
		return false
	}
	if choices, ok := v["choices"].([]any); ok && len(choices) > 0 {
		return IsTruncated(choices[0])
	}
	if finishedShort(v) {
		return true
	}
	if status, _ := v["status"].(string); status == "incomplete" {
		return true
	}
	if details, ok := v["incomplete_details"].(map[string]any); ok {
		if reason, _ := details["reason"].(string); reason == "max_output_tokens" {
			return true
		}
	}
	if output, ok := v["output"].([]any); ok {
		for _, entry := range output {
			if e, ok := entry.(map[string]any); ok {
				if finishedShort(e) {
					return true
				}
				if status, _ := e["status"].(string); status == "incomplete" {
					return true
				}
			}
		}
	}
	return false
}

func finishedShort(v map[string]any) bool {
	reason, _ := v["finish_reason"].(string)
	return reason == "length" || reason == "max_output_tokens"
}

func mapAt(v any, key string) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := m[key].(map[string]any)
	return child, ok
}
