// Package transport owns the connection to one MCP tool-server process:
// newline-delimited JSON-RPC 2.0 over the child's stdin/stdout.
//
// One RPC is in flight at a time; the session is guarded by a mutex and is
// owned exclusively by the bridge for the process lifetime.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultRPCTimeout = 30 * time.Second

// Session is a lifecycle-scoped connection to one tool-server process.
// Connect, Initialize, then ListTools/CallTool; Close releases everything.
type Session struct {
	cfg     ServerConfig
	timeout time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	dec    *json.Decoder

	mu          sync.Mutex
	initialized bool
	desynced    bool

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session before Connect.
type Option func(*Session)

// WithRPCTimeout overrides the per-call timeout applied to every RPC.
func WithRPCTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

func NewSession(cfg ServerConfig, opts ...Option) *Session {
	s := &Session{cfg: cfg, timeout: defaultRPCTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect spawns the server process and wires up its pipes. Any failure is
// reported as a ConnectionError.
func (s *Session) Connect(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	if s.cfg.Env != nil {
		env := os.Environ()
		for k, v := range s.cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ConnectionError{Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ConnectionError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ConnectionError{Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &ConnectionError{Err: err}
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdout
	s.stderr = stderr
	s.dec = json.NewDecoder(stdout)

	return nil
}

// Initialize performs the MCP handshake and the initialized notification.
// A rejected handshake is a ConnectionError: the session is unusable.
func (s *Session) Initialize(ctx context.Context) error {
	req := rpcRequest{
		ID:         uuid.NewString(),
		RPCVersion: rpcVersion,
		Method:     methodInitialize.String(),
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"clientInfo": map[string]any{
				"name":    "toolbridge",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{},
		},
	}

	resp, err := s.roundTrip(ctx, req)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	if resp.Error != nil {
		return &ConnectionError{Err: fmt.Errorf("handshake rejected: %s", resp.Error.Message)}
	}

	note := rpcRequest{
		RPCVersion: rpcVersion,
		Method:     methodNotificationInitialized.String(),
	}
	if err := s.notify(note); err != nil {
		return &ConnectionError{Err: err}
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	return nil
}

// ListTools fetches the current tool catalog from the server.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	req := rpcRequest{
		ID:         uuid.NewString(),
		RPCVersion: rpcVersion,
		Method:     methodToolsList.String(),
		Params:     map[string]any{},
	}

	resp, err := s.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &ProtocolError{Method: req.Method, Err: fmt.Errorf("server error: %s", resp.Error.Message)}
	}

	var listed toolsListResult
	if err := json.Unmarshal(resp.Result, &listed); err != nil {
		return nil, &ProtocolError{Method: req.Method, Err: err}
	}
	for _, tool := range listed.Tools {
		if tool.Name == "" {
			return nil, &ProtocolError{Method: req.Method, Err: fmt.Errorf("tool entry missing name")}
		}
	}

	return listed.Tools, nil
}

// CallTool executes a server tool. Server-reported failures, whether a
// JSON-RPC error or an isError result, come back as a ToolError.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	req := rpcRequest{
		ID:         uuid.NewString(),
		RPCVersion: rpcVersion,
		Method:     methodToolsCall.String(),
		Params: map[string]any{
			"name":      name,
			"arguments": args,
		},
	}

	resp, err := s.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &ToolError{Tool: name, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	var result ToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &ProtocolError{Method: req.Method, Err: err}
	}
	if result.IsError {
		return nil, &ToolError{Tool: name, Message: result.Text()}
	}

	return &result, nil
}

// Close releases pipes and kills the child. Idempotent and safe after a
// partial Connect failure.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		for _, c := range []io.Closer{s.stdin, s.stdout, s.stderr} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		if s.cmd != nil && s.cmd.Process != nil {
			if err := s.cmd.Process.Kill(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// roundTrip sends one request and waits for its reply, applying the per-call
// timeout. Replies are matched by ID; notifications and unrelated traffic
// are skipped. A timed-out call poisons the stream (the reply may still
// arrive later), so the session refuses further RPCs once desynced.
func (s *Session) roundTrip(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin == nil || s.dec == nil {
		return nil, ErrNotConnected
	}
	if s.desynced {
		return nil, &ConnectionError{Err: errDesynced}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	payload = append(payload, '\n')
	if _, err := s.stdin.Write(payload); err != nil {
		return nil, &ConnectionError{Err: err}
	}

	wantID, err := json.Marshal(req.ID)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		resp *rpcResponse
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		for {
			var resp rpcResponse
			if err := s.dec.Decode(&resp); err != nil {
				ch <- outcome{err: err}
				return
			}
			if string(resp.ID) != string(wantID) {
				continue
			}
			ch <- outcome{resp: &resp}
			return
		}
	}()

	select {
	case <-ctx.Done():
		s.desynced = true
		return nil, ctx.Err()
	case out := <-ch:
		if out.err != nil {
			return nil, &ProtocolError{Method: req.Method, Err: out.err}
		}
		return out.resp, nil
	}
}

// notify writes a request with no ID and expects no reply.
func (s *Session) notify(req rpcRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := s.stdin.Write(payload); err != nil {
		return err
	}
	return nil
}
