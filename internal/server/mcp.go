package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const searchToolName = "search_menu"

// MCPTool represents an MCP tool definition.
type MCPTool struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InputSchema MCPSchema `json:"inputSchema"`
}

// MCPSchema represents a JSON schema for tool inputs.
type MCPSchema struct {
	Type       string             `json:"type"`
	Properties map[string]MCPProp `json:"properties"`
	Required   []string           `json:"required"`
}

// MCPProp represents a single parameter property.
type MCPProp struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// MCPRequest is an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse is an outgoing MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleMCP processes MCP JSON-RPC requests.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req MCPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			Error:   &MCPError{Code: -32700, Message: "parse error: " + err.Error()},
		})
		return
	}

	var (
		result any
		rpcErr *MCPError
	)
	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "menuscan", "version": s.version},
		}
	case "tools/list":
		result = map[string]any{"tools": []MCPTool{searchTool()}}
	case "tools/call":
		result, rpcErr = s.mcpCallTool(r, req.Params)
	default:
		rpcErr = &MCPError{Code: -32601, Message: "method not found: " + req.Method}
	}

	writeJSON(w, http.StatusOK, MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
}

func searchTool() MCPTool {
	return MCPTool{
		Name:        searchToolName,
		Description: "Search extracted restaurant menus for dishes by name, ingredient, section or tag.",
		InputSchema: MCPSchema{
			Type: "object",
			Properties: map[string]MCPProp{
				"query":      {Type: "string", Description: "What to look for, e.g. \"spicy noodles\""},
				"restaurant": {Type: "string", Description: "Restaurant id; empty searches every menu"},
				"top_k":      {Type: "integer", Description: "Number of dishes to return (default: 5)"},
			},
			Required: []string{"query"},
		},
	}
}

func (s *Server) mcpCallTool(r *http.Request, params json.RawMessage) (any, *MCPError) {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &MCPError{Code: -32602, Message: "invalid params: " + err.Error()}
	}
	if p.Name != searchToolName {
		return nil, &MCPError{Code: -32602, Message: "unknown tool: " + p.Name}
	}

	query, _ := p.Arguments["query"].(string)
	if query == "" {
		return nil, &MCPError{Code: -32602, Message: "query argument is required"}
	}
	restaurant, _ := p.Arguments["restaurant"].(string)
	topK := 5
	if tk, ok := p.Arguments["top_k"].(float64); ok && tk > 0 {
		topK = int(tk)
	}

	res, err := s.search(r.Context(), restaurant, query, topK)
	if err != nil {
		return nil, &MCPError{Code: -32603, Message: "search error: " + err.Error()}
	}

	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": formatSearch(res)}},
	}, nil
}

// formatSearch renders search hits as markdown for an agent.
func formatSearch(res *searchResponse) string {
	if len(res.Dishes) == 0 && len(res.Facts) == 0 {
		return "No matching dishes."
	}

	var sb strings.Builder
	if len(res.Dishes) > 0 {
		sb.WriteString("## Dishes\n\n")
		for i, d := range res.Dishes {
			fmt.Fprintf(&sb, "**[%d] %s** (%s, similarity: %.2f)\n%s\n\n", i+1, d.Name, d.Restaurant, d.Similarity, d.Content)
		}
	}
	if len(res.Facts) > 0 {
		sb.WriteString("## Menu Facts\n\n")
		for _, f := range res.Facts {
			fmt.Fprintf(&sb, "- %s %s %s\n", f.Subject, strings.ReplaceAll(f.Predicate, "_", " "), f.Object)
		}
	}
	return sb.String()
}
