package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"
)

// newPipeSession wires a Session to an in-process fake server. The handler
// receives each decoded request and returns zero or more messages to write
// back (nil means stay silent).
func newPipeSession(t *testing.T, handle func(req rpcRequest) []any) *Session {
	t.Helper()

	clientReads, serverWrites := io.Pipe()
	serverReads, clientWrites := io.Pipe()

	s := &Session{
		stdin:   clientWrites,
		stdout:  clientReads,
		dec:     json.NewDecoder(clientReads),
		timeout: time.Second,
	}

	go func() {
		dec := json.NewDecoder(serverReads)
		enc := json.NewEncoder(serverWrites)
		for {
			var req rpcRequest
			if err := dec.Decode(&req); err != nil {
				return
			}
			for _, msg := range handle(req) {
				if err := enc.Encode(msg); err != nil {
					return
				}
			}
		}
	}()

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func reply(req rpcRequest, result any) *rpcResponse {
	raw, _ := json.Marshal(result)
	id, _ := json.Marshal(req.ID)
	return &rpcResponse{ID: id, RPCVersion: rpcVersion, Result: raw}
}

func replyError(req rpcRequest, code int, message string) *rpcResponse {
	id, _ := json.Marshal(req.ID)
	return &rpcResponse{ID: id, RPCVersion: rpcVersion, Error: &rpcError{Code: code, Message: message}}
}

func TestInitialize_Handshake(t *testing.T) {
	notified := make(chan struct{}, 1)
	s := newPipeSession(t, func(req rpcRequest) []any {
		switch req.Method {
		case "initialize":
			if req.Params["protocolVersion"] != protocolVersion {
				t.Errorf("unexpected protocolVersion in handshake: %v", req.Params["protocolVersion"])
			}
			return []any{reply(req, map[string]any{"protocolVersion": protocolVersion})}
		case "notifications/initialized":
			notified <- struct{}{}
			return nil
		default:
			t.Errorf("unexpected method %q", req.Method)
			return nil
		}
	})

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("initialized notification never arrived")
	}
}

func TestInitialize_Rejected(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		return []any{replyError(req, -32600, "unsupported protocol")}
	})

	err := s.Initialize(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestListTools(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		if req.Method != "tools/list" {
			t.Errorf("unexpected method %q", req.Method)
		}
		return []any{reply(req, map[string]any{
			"tools": []map[string]any{
				{
					"name":        "add",
					"description": "Add two numbers.",
					"inputSchema": map[string]any{
						"type":       "object",
						"properties": map[string]any{"a": map[string]any{"type": "number"}},
						"required":   []string{"a"},
					},
				},
				{"name": "echo", "description": "Echo text.", "inputSchema": map[string]any{"type": "object"}},
			},
		})}
	})

	tools, err := s.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "add" || tools[0].Description != "Add two numbers." {
		t.Errorf("unexpected first tool: %+v", tools[0])
	}
	if tools[0].InputSchema.Type != "object" {
		t.Errorf("schema type not carried through: %+v", tools[0].InputSchema)
	}
	if len(tools[0].InputSchema.Required) != 1 || tools[0].InputSchema.Required[0] != "a" {
		t.Errorf("schema required not carried through: %+v", tools[0].InputSchema)
	}
	if _, ok := tools[0].InputSchema.Properties["a"]; !ok {
		t.Errorf("schema properties not carried through: %+v", tools[0].InputSchema)
	}
}

func TestListTools_MalformedResult(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		return []any{reply(req, map[string]any{"tools": 42})}
	})

	_, err := s.ListTools(context.Background())
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestListTools_MissingToolName(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		return []any{reply(req, map[string]any{
			"tools": []map[string]any{{"description": "anonymous"}},
		})}
	})

	_, err := s.ListTools(context.Background())
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestCallTool_TextResult(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		if req.Params["name"] != "add" {
			t.Errorf("unexpected tool name %v", req.Params["name"])
		}
		args, ok := req.Params["arguments"].(map[string]any)
		if !ok || args["a"] != float64(2) {
			t.Errorf("arguments not carried through: %v", req.Params["arguments"])
		}
		return []any{reply(req, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "5"}},
		})}
	})

	res, err := s.CallTool(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if got := res.Text(); got != "5" {
		t.Errorf("result text: want %q, got %q", "5", got)
	}
}

func TestCallTool_ServerError(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		return []any{replyError(req, -32602, "invalid arguments")}
	})

	_, err := s.CallTool(context.Background(), "add", nil)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.Tool != "add" || toolErr.Code != -32602 || toolErr.Message != "invalid arguments" {
		t.Errorf("unexpected ToolError: %+v", toolErr)
	}
}

func TestCallTool_IsErrorResult(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		return []any{reply(req, map[string]any{
			"isError": true,
			"content": []map[string]any{{"type": "text", "text": "division by zero"}},
		})}
	})

	_, err := s.CallTool(context.Background(), "divide", nil)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.Message != "division by zero" {
		t.Errorf("unexpected message: %q", toolErr.Message)
	}
}

func TestRoundTrip_SkipsUnrelatedTraffic(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		// A log notification and somebody else's reply arrive first.
		return []any{
			map[string]any{"jsonrpc": "2.0", "method": "notifications/message", "params": map[string]any{"level": "info"}},
			map[string]any{"jsonrpc": "2.0", "id": 99, "result": map[string]any{}},
			reply(req, map[string]any{"tools": []map[string]any{}}),
		}
	})

	tools, err := s.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("expected empty catalog, got %d tools", len(tools))
	}
}

func TestRoundTrip_TimeoutPoisonsSession(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any {
		return nil // never reply
	})
	s.timeout = 50 * time.Millisecond

	_, err := s.ListTools(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// The reply stream can no longer be trusted; further RPCs must refuse.
	_, err = s.ListTools(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError after timeout, got %v", err)
	}
}

func TestRoundTrip_NotConnected(t *testing.T) {
	s := NewSession(ServerConfig{Command: "true"})
	_, err := s.ListTools(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	s := newPipeSession(t, func(req rpcRequest) []any { return nil })
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	// Safe on a session that never connected.
	if err := NewSession(ServerConfig{}).Close(); err != nil {
		t.Fatalf("Close on unconnected session: %v", err)
	}
}
