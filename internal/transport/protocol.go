package transport

import "encoding/json"

type method string

func (m method) String() string {
	return string(m)
}

const (
	methodInitialize              method = "initialize"
	methodNotificationInitialized method = "notifications/initialized"
	methodToolsList               method = "tools/list"
	methodToolsCall               method = "tools/call"
)

const (
	rpcVersion      = "2.0"
	protocolVersion = "2025-03-26"
)

type rpcRequest struct {
	ID         string         `json:"id,omitempty"`
	RPCVersion string         `json:"jsonrpc"`
	Method     string         `json:"method"`
	Params     map[string]any `json:"params,omitempty"`
}

type rpcResponse struct {
	// Raw so replies survive servers that number their own requests;
	// anything whose ID doesn't match ours is skipped, not a decode failure.
	ID         json.RawMessage `json:"id,omitempty"`
	RPCVersion string          `json:"jsonrpc"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Tool describes one server-provided tool as advertised by tools/list.
// Immutable once fetched; the catalog is refreshed per query.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

type ToolInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolResult is the content payload a tool call returned. The bridge treats
// it as opaque beyond flattening its text items back into the conversation.
type ToolResult struct {
	Content []ResultContent `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

type ResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text joins the text items of the result, one per line.
func (r *ToolResult) Text() string {
	out := ""
	for _, c := range r.Content {
		if c.Type != "text" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += c.Text
	}
	return out
}
