// Package catalog translates server tool descriptors into the declaration
// format the Anthropic Messages API expects. Pure mapping, no state.
package catalog

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/toolbridge/toolbridge/internal/transport"
)

// ToAnthropicTools maps each descriptor 1:1 — name, description, and input
// schema are passed through untouched.
func ToAnthropicTools(tools []transport.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.InputSchema.Properties,
				Required:   t.InputSchema.Required,
			},
		}})
	}
	return out
}

// Contains reports whether name is present in the catalog. The engine
// validates tool names against the last-fetched catalog before dispatching.
func Contains(tools []transport.Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
