package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/invopop/jsonschema"
)

type toolDef struct {
	Name        string                                `json:"name"`
	Description string                                `json:"description"`
	InputSchema map[string]any                        `json:"inputSchema"`
	Handler     func(json.RawMessage) (string, error) `json:"-"`
}

type AddInput struct {
	A float64 `json:"a" jsonschema_description:"First addend."`
	B float64 `json:"b" jsonschema_description:"Second addend."`
}

type EchoInput struct {
	Text string `json:"text" jsonschema_description:"Text to echo back unchanged."`
}

func registry() []toolDef {
	return []toolDef{
		{
			Name:        "add",
			Description: "Add two numbers and return the sum.",
			InputSchema: generateSchema[AddInput](),
			Handler:     add,
		},
		{
			Name:        "echo",
			Description: "Echo the given text back unchanged.",
			InputSchema: generateSchema[EchoInput](),
			Handler:     echo,
		},
	}
}

func add(input json.RawMessage) (string, error) {
	var in AddInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("add: %w", err)
	}
	return strconv.FormatFloat(in.A+in.B, 'f', -1, 64), nil
}

func echo(input json.RawMessage) (string, error) {
	var in EchoInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("echo: %w", err)
	}
	return in.Text, nil
}

// generateSchema derives a JSON Schema object from a Go struct.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	delete(m, "$schema")
	return m
}
