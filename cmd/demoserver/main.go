// Command demoserver is a minimal MCP tool server speaking newline-delimited
// JSON-RPC 2.0 on stdio. It exists to exercise the bridge end to end:
//
//	bridge --config demoserver.json
//
// with a config whose command points at this binary.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID         json.RawMessage `json:"id,omitempty"`
	RPCVersion string          `json:"jsonrpc"`
	Result     any             `json:"result,omitempty"`
	Error      *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func main() {
	if err := serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "demoserver: %v\n", err)
		os.Exit(1)
	}
}

func serve(in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)
	defs := registry()

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		// Notifications carry no ID and expect no reply.
		if req.ID == nil {
			continue
		}

		resp := handle(defs, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
}

func handle(defs []toolDef, req request) response {
	resp := response{ID: req.ID, RPCVersion: "2.0"}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "demoserver", "version": "0.1.0"},
		}

	case "tools/list":
		resp.Result = map[string]any{"tools": defs}

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}
			break
		}
		resp.Result = callTool(defs, params)

	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}

	return resp
}

func callTool(defs []toolDef, params callParams) map[string]any {
	for _, def := range defs {
		if def.Name != params.Name {
			continue
		}
		text, err := def.Handler(params.Arguments)
		if err != nil {
			return map[string]any{
				"isError": true,
				"content": []map[string]any{{"type": "text", "text": err.Error()}},
			}
		}
		return map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		}
	}
	return map[string]any{
		"isError": true,
		"content": []map[string]any{{"type": "text", "text": "unknown tool: " + params.Name}},
	}
}
