package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrUnparseable is returned when no repair stage produced valid JSON.
var ErrUnparseable = errors.New("model output is not recoverable as JSON")

// Stage identifies the repair rung that produced a successful parse.
type Stage int

const (
	StageRaw Stage = iota + 1
	StageNoComments
	StageNoTrailingCommas
	StageQuotedKeys
	StageDoubleQuoted
	StageRepaired
)

func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageNoComments:
		return "no_comments"
	case StageNoTrailingCommas:
		return "no_trailing_commas"
	case StageQuotedKeys:
		return "quoted_keys"
	case StageDoubleQuoted:
		return "double_quoted"
	case StageRepaired:
		return "repaired"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Parsed is a successfully decoded JSON value and the rung that decoded it.
type Parsed struct {
	Value any
	Stage Stage
	// Text is the exact input handed to the successful decode.
	Text string
}

var rungs = []struct {
	stage  Stage
	repair func(string) string
}{
	{StageNoComments, stripComments},
	{StageNoTrailingCommas, stripTrailingCommas},
	{StageQuotedKeys, quoteKeys},
	{StageDoubleQuoted, singleToDoubleQuotes},
}

// ParseLenient decodes model text as JSON, applying increasingly aggressive
// repairs. Each rung works on the output of the previous one and is only
// reached when every earlier rung failed to decode.
func ParseLenient(text string) (*Parsed, error) {
	text = locateJSON(strings.TrimSpace(text))
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrUnparseable)
	}

	if v, err := decode(text); err == nil {
		return &Parsed{Value: v, Stage: StageRaw, Text: text}, nil
	}
	// A complete document followed by a sign-off sentence.
	if inner, ok := balancedContainer(text); ok && inner != text {
		if p, err := climb(inner); err == nil {
			return p, nil
		}
	}
	return climb(text)
}

func climb(text string) (*Parsed, error) {
	v, err := decode(text)
	if err == nil {
		return &Parsed{Value: v, Stage: StageRaw, Text: text}, nil
	}
	lastErr := err

	working := text
	for _, r := range rungs {
		working = r.repair(working)
		v, err := decode(working)
		if err == nil {
			return &Parsed{Value: v, Stage: r.stage, Text: working}, nil
		}
		lastErr = err
	}

	// The generic repairer also "fixes" bare prose into JSON strings, so it
	// only runs on text that opens like a document and must yield one.
	if opensContainer(working) {
		if repaired, err := jsonrepair.JSONRepair(working); err == nil {
			if v, err := decode(repaired); err == nil && isContainer(v) {
				return &Parsed{Value: v, Stage: StageRepaired, Text: repaired}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnparseable, lastErr)
}

func opensContainer(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

var fencedJSON = regexp.MustCompile("(?is)```\\s*json\\s*\\n?(.*?)```")
var fencedAny = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// locateJSON narrows prose-wrapped output down to the JSON it contains. Text
// that already starts like JSON is returned unchanged.
func locateJSON(s string) string {
	if s == "" || opensContainer(s) {
		return s
	}
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedAny.FindStringSubmatch(s); m != nil {
		inner := strings.TrimSpace(m[1])
		if strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[") {
			return inner
		}
	}
	if obj, ok := balancedObject(s); ok {
		return obj
	}
	return s
}

// balancedObject returns the substring from the first '{' to its matching
// '}', tracking string literals and escapes. An unbalanced tail is returned
// as-is so the repair rungs can still close it.
func balancedObject(s string) (string, bool) {
	return balanced(s, '{', '}')
}

// balancedContainer is balancedObject for text that already opens with '{'
// or '['.
func balancedContainer(s string) (string, bool) {
	if strings.HasPrefix(s, "[") {
		return balanced(s, '[', ']')
	}
	return balanced(s, '{', '}')
}

func balanced(s string, opening, closing byte) (string, bool) {
	start := strings.IndexByte(s, opening)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return s[start:], true
}

// scan walks s calling fn for every byte outside double-quoted strings.
// String bytes are copied through verbatim. fn returns how many bytes it
// consumed (0 means copy the current byte).
func scan(s string, fn func(s string, i int, out *strings.Builder) int) string {
	var out strings.Builder
	out.Grow(len(s))
	inString := false
	for i := 0; i < len(s); {
		c := s[i]
		if inString {
			out.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					out.WriteByte(s[i+1])
					i++
				}
			case '"':
				inString = false
			}
			i++
			continue
		}
		if c == '"' {
			inString = true
			out.WriteByte(c)
			i++
			continue
		}
		if n := fn(s, i, &out); n > 0 {
			i += n
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func stripComments(s string) string {
	return scan(s, func(s string, i int, _ *strings.Builder) int {
		if s[i] != '/' || i+1 >= len(s) {
			return 0
		}
		switch s[i+1] {
		case '/':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return len(s) - i
			}
			return end
		case '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return len(s) - i
			}
			return end + 4
		}
		return 0
	})
}

func stripTrailingCommas(s string) string {
	return scan(s, func(s string, i int, _ *strings.Builder) int {
		if s[i] != ',' {
			return 0
		}
		j := i + 1
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j < len(s) && (s[j] == '}' || s[j] == ']') {
			return 1
		}
		return 0
	})
}

func quoteKeys(s string) string {
	return scan(s, func(s string, i int, out *strings.Builder) int {
		if s[i] != '{' && s[i] != ',' {
			return 0
		}
		j := i + 1
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j >= len(s) || !isIdentStart(s[j]) {
			return 0
		}
		k := j
		for k < len(s) && isIdentPart(s[k]) {
			k++
		}
		m := k
		for m < len(s) && isSpace(s[m]) {
			m++
		}
		if m >= len(s) || s[m] != ':' {
			return 0
		}
		out.WriteString(s[i:j])
		out.WriteByte('"')
		out.WriteString(s[j:k])
		out.WriteByte('"')
		return k - i
	})
}

func singleToDoubleQuotes(s string) string {
	return scan(s, func(s string, i int, out *strings.Builder) int {
		if s[i] != '\'' {
			return 0
		}
		var lit strings.Builder
		j := i + 1
		for ; j < len(s); j++ {
			c := s[j]
			if c == '\\' && j+1 < len(s) {
				if s[j+1] == '\'' {
					lit.WriteByte('\'')
				} else {
					lit.WriteByte(c)
					lit.WriteByte(s[j+1])
				}
				j++
				continue
			}
			if c == '\'' {
				break
			}
			if c == '"' {
				lit.WriteString(`\"`)
				continue
			}
			lit.WriteByte(c)
		}
		if j >= len(s) {
			return 0
		}
		out.WriteByte('"')
		out.WriteString(lit.String())
		out.WriteByte('"')
		return j - i + 1
	})
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
