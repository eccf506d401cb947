package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/toolbridge/toolbridge/internal/catalog"
	"github.com/toolbridge/toolbridge/internal/provider"
	"github.com/toolbridge/toolbridge/internal/telemetry"
	"github.com/toolbridge/toolbridge/internal/transport"
)

// DefaultMaxRounds caps model<->tool alternations per query. Without a cap a
// model that keeps requesting tools would loop forever.
const DefaultMaxRounds = 8

const defaultMaxTokens = 1024

// ToolCaller abstracts tool dispatch for testability. transport.Session is
// the production implementation.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*transport.ToolResult, error)
}

// ToolResendPolicy controls whether the tool catalog is attached to
// continuation calls after the first round.
type ToolResendPolicy int

const (
	// ResendEveryRound attaches the catalog to every model call. Default:
	// omitting it can stop the model from invoking a second, different tool
	// later in the same query.
	ResendEveryRound ToolResendPolicy = iota
	// ResendFirstRoundOnly attaches the catalog to the first call only,
	// saving schema bytes on every continuation.
	ResendFirstRoundOnly
)

// Engine drives one query to completion. Build a fresh Engine per query;
// history lives and dies with a single Run call.
type Engine struct {
	client    *anthropic.Client
	caller    ToolCaller
	tools     []transport.Tool
	model     anthropic.Model
	maxTokens int64
	maxRounds int
	resend    ToolResendPolicy
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithModel(m anthropic.Model) Option {
	return func(e *Engine) { e.model = m }
}

func WithMaxTokens(n int64) Option {
	return func(e *Engine) { e.maxTokens = n }
}

func WithMaxRounds(n int) Option {
	return func(e *Engine) { e.maxRounds = n }
}

func WithToolResendPolicy(p ToolResendPolicy) Option {
	return func(e *Engine) { e.resend = p }
}

func New(client *anthropic.Client, caller ToolCaller, tools []transport.Tool, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		caller:    caller,
		tools:     tools,
		model:     provider.DefaultModel,
		maxTokens: defaultMaxTokens,
		maxRounds: DefaultMaxRounds,
		resend:    ResendEveryRound,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ToolCallRecord logs one tool invocation made during a Run.
type ToolCallRecord struct {
	Name   string
	Round  int // 1-based round in which the call occurred
	Result string
}

// Result holds the outcome of a completed Run.
type Result struct {
	Answer    string
	Rounds    int
	ToolCalls []ToolCallRecord
}

// Run executes the turn loop for query. The answer is the concatenation of
// every text block the model emitted, in emission order, across all rounds.
// Any tool failure ends the query immediately; nothing is retried here.
func (e *Engine) Run(ctx context.Context, query string) (*Result, error) {
	queryID, ok := telemetry.QueryIDFromContext(ctx)
	if !ok {
		queryID = fmt.Sprintf("query-%d", time.Now().UnixNano())
		ctx = telemetry.WithQueryID(ctx, queryID)
	}

	history := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
	}

	var answer []string
	res := &Result{}

	for round := 1; round <= e.maxRounds; round++ {
		// Cancellation is honored only here, between remote calls.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := anthropic.MessageNewParams{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			Messages:  history,
		}
		if round == 1 || e.resend == ResendEveryRound {
			if declared := catalog.ToAnthropicTools(e.tools); len(declared) > 0 {
				params.Tools = declared
			}
		}

		msg, err := e.client.Messages.New(ctx, params)
		if err != nil {
			return nil, err
		}
		history = append(history, msg.ToParam())
		res.Rounds = round

		textBlocks, toolUses := 0, 0
		for _, block := range msg.Content {
			switch v := block.AsAny().(type) {
			case anthropic.TextBlock:
				// Text alongside a tool_use is commentary, not a terminal
				// answer; it still joins the accumulated output.
				answer = append(answer, v.Text)
				textBlocks++
			case anthropic.ToolUseBlock:
				toolUses++
				result, err := e.dispatch(ctx, queryID, round, v)
				if err != nil {
					return nil, err
				}
				history = append(history, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(v.ID, result, false),
				))
				res.ToolCalls = append(res.ToolCalls, ToolCallRecord{
					Name:   v.Name,
					Round:  round,
					Result: result,
				})
			}
		}

		telemetry.Emit("round_completed", map[string]any{
			"query_id":    queryID,
			"round":       round,
			"text_blocks": textBlocks,
			"tool_uses":   toolUses,
		})

		if toolUses == 0 {
			res.Answer = strings.Join(answer, "\n")
			return res, nil
		}
	}

	return nil, ErrTurnLimit
}

// dispatch validates the requested tool against the catalog fetched for this
// query, invokes it, and returns the flattened result text.
func (e *Engine) dispatch(ctx context.Context, queryID string, round int, block anthropic.ToolUseBlock) (string, error) {
	emit := func(durationMs int64, inputSize, outputSize int, errStr string) {
		fields := map[string]any{
			"query_id":    queryID,
			"round":       round,
			"tool_name":   block.Name,
			"duration_ms": durationMs,
			"input_size":  inputSize,
			"output_size": outputSize,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_dispatch", fields)
	}

	start := time.Now()
	input := json.RawMessage(block.JSON.Input.Raw())
	inSize := len(input)

	if !catalog.Contains(e.tools, block.Name) {
		emit(time.Since(start).Milliseconds(), inSize, 0, "tool not found")
		return "", &ToolNotFoundError{Name: block.Name}
	}

	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		emit(time.Since(start).Milliseconds(), inSize, 0, "bad arguments")
		return "", fmt.Errorf("decode arguments for tool %q: %w", block.Name, err)
	}

	result, err := e.caller.CallTool(ctx, block.Name, args)
	if err != nil {
		// Generic error marker only; raw payloads stay out of telemetry.
		emit(time.Since(start).Milliseconds(), inSize, 0, "tool error")
		return "", err
	}

	text := result.Text()
	emit(time.Since(start).Milliseconds(), inSize, len(text), "")
	return text, nil
}
