package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/toolbridge/toolbridge/internal/catalog"
	"github.com/toolbridge/toolbridge/internal/transport"
)

func TestToAnthropicTools_Passthrough(t *testing.T) {
	tools := []transport.Tool{
		{
			Name:        "add",
			Description: "Add two numbers.",
			InputSchema: transport.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"a": map[string]any{"type": "number"}},
				Required:   []string{"a"},
			},
		},
	}

	params := catalog.ToAnthropicTools(tools)
	if len(params) != 1 {
		t.Fatalf("expected 1 tool param, got %d", len(params))
	}
	if params[0].OfTool == nil {
		t.Fatal("expected OfTool variant")
	}
	if params[0].OfTool.Name != "add" {
		t.Errorf("name: want add, got %q", params[0].OfTool.Name)
	}

	// Assert the wire shape the API will see.
	b, err := json.Marshal(params[0].OfTool)
	if err != nil {
		t.Fatalf("marshal tool param: %v", err)
	}
	var wire struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		} `json:"input_schema"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("unmarshal wire form: %v", err)
	}
	if wire.Description != "Add two numbers." {
		t.Errorf("description not carried through: %q", wire.Description)
	}
	if _, ok := wire.InputSchema.Properties["a"]; !ok {
		t.Errorf("schema properties not carried through: %+v", wire.InputSchema)
	}
	if len(wire.InputSchema.Required) != 1 || wire.InputSchema.Required[0] != "a" {
		t.Errorf("schema required not carried through: %+v", wire.InputSchema)
	}
}

func TestToAnthropicTools_EmptyCatalog(t *testing.T) {
	params := catalog.ToAnthropicTools(nil)
	if len(params) != 0 {
		t.Fatalf("expected empty mapping, got %d", len(params))
	}
}

func TestContains(t *testing.T) {
	tools := []transport.Tool{{Name: "add"}, {Name: "echo"}}
	if !catalog.Contains(tools, "echo") {
		t.Error("echo should be in catalog")
	}
	if catalog.Contains(tools, "subtract") {
		t.Error("subtract should not be in catalog")
	}
}
