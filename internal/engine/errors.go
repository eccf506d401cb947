package engine

import (
	"errors"
	"fmt"
)

// ErrTurnLimit is returned by Run when the loop exhausts its round budget
// without the model producing a final, tool-free response.
var ErrTurnLimit = errors.New("turn limit exceeded")

// ToolNotFoundError reports a tool_use block naming a tool that is absent
// from the catalog fetched for this query.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not in catalog", e.Name)
}
