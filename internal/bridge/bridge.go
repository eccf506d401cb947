// Package bridge owns the single tool-server session and the Anthropic
// client for the process lifetime, and drives one query at a time through
// the turn engine. Query failures never escape SubmitQuery; they are
// rendered as the answer so a bad query cannot take the session down.
package bridge

import (
	"context"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/toolbridge/toolbridge/internal/engine"
	"github.com/toolbridge/toolbridge/internal/provider"
	"github.com/toolbridge/toolbridge/internal/telemetry"
	"github.com/toolbridge/toolbridge/internal/transport"
)

// Session is the slice of the transport the bridge needs.
type Session interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]transport.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*transport.ToolResult, error)
	Close() error
}

type Bridge struct {
	session    Session
	client     *anthropic.Client
	engineOpts []engine.Option

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Bridge before Connect establishes the session.
type Option func(*Bridge)

// WithClient overrides the env-constructed Anthropic client.
func WithClient(c *anthropic.Client) Option {
	return func(b *Bridge) { b.client = c }
}

// WithSession overrides the stdio transport session.
func WithSession(s Session) Option {
	return func(b *Bridge) { b.session = s }
}

// WithEngineOptions forwards options to every per-query engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(b *Bridge) { b.engineOpts = opts }
}

// Connect spawns the tool server described by cfg and performs the
// handshake. On a partial failure the session is closed before returning,
// so callers never hold a half-open transport.
func Connect(ctx context.Context, cfg transport.ServerConfig, opts ...Option) (*Bridge, error) {
	b := &Bridge{client: provider.NewAnthropicClient()}
	for _, opt := range opts {
		opt(b)
	}

	if b.session == nil {
		s := transport.NewSession(cfg)
		if err := s.Connect(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		b.session = s
	}

	if err := b.session.Initialize(ctx); err != nil {
		_ = b.session.Close()
		return nil, err
	}

	return b, nil
}

// SubmitQuery runs one query to completion and returns the answer, or a
// rendered error string. The tool catalog is re-fetched for every query so
// server-side tool changes are picked up; history is query-scoped and
// discarded regardless of outcome.
func (b *Bridge) SubmitQuery(ctx context.Context, text string) string {
	queryID := uuid.NewString()
	ctx = telemetry.WithQueryID(ctx, queryID)

	tools, err := b.session.ListTools(ctx)
	if err != nil {
		return renderError(err)
	}

	telemetry.Emit("query_started", map[string]any{
		"query_id":   queryID,
		"tool_count": len(tools),
	})

	eng := engine.New(b.client, b.session, tools, b.engineOpts...)
	res, err := eng.Run(ctx, text)
	if err != nil {
		return renderError(err)
	}
	return res.Answer
}

// Teardown releases the transport exactly once. Safe to call repeatedly and
// after partial initialization failure.
func (b *Bridge) Teardown() error {
	b.closeOnce.Do(func() {
		if b.session != nil {
			b.closeErr = b.session.Close()
		}
	})
	return b.closeErr
}

func renderError(err error) string {
	return "error: " + err.Error()
}
