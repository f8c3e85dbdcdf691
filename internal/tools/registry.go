// Package tools defines the closed set of actions the conversation
// assistant can take, with typed argument schemas the model plans against.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownTool is returned when a requested tool name is not registered.
var ErrUnknownTool = errors.New("tools: unknown tool")

// ValidationError reports arguments that do not satisfy a tool's schema. The
// orchestrator feeds it back to the model as a failed tool result instead of
// aborting the turn.
type ValidationError struct {
	Tool   string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tools: invalid arguments for %s: %s", e.Tool, strings.Join(e.Issues, "; "))
}

// Field is one argument in a tool's schema.
type Field struct {
	Name        string
	Type        string // "string", "integer", "number" or "boolean"
	Description string
	Required    bool
	Enum        []string
}

// Definition describes a tool to the model.
type Definition struct {
	Name        string
	Description string
	Fields      []Field
}

// InputSchema renders the definition as a JSON Schema object, the shape both
// Bedrock and Gemini accept for tool declarations.
func (d Definition) InputSchema() map[string]any {
	props := make(map[string]any, len(d.Fields))
	var required []string
	for _, f := range d.Fields {
		prop := map[string]any{
			"type":        f.Type,
			"description": f.Description,
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Handler executes a tool with validated arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition
	Run Handler
}

// Registry is the closed tool set. It is built once at startup and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools. Duplicate names are a
// programming error.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Run == nil {
			panic("tools: tool requires a name and a handler")
		}
		if _, dup := r.tools[t.Name]; dup {
			panic("tools: duplicate tool " + t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	sort.Strings(r.order)
	return r
}

// Definitions returns all tool definitions in stable order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition)
	}
	return out
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute runs one tool call. Unknown names return ErrUnknownTool; arguments
// that fail the schema return a *ValidationError. Both are recoverable from
// the orchestrator's point of view.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (any, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, &ValidationError{Tool: name, Issues: []string{"arguments are not a JSON object"}}
		}
	}

	if verr := validateArgs(tool.Definition, args); verr != nil {
		return nil, verr
	}
	return tool.Run(ctx, args)
}

func validateArgs(def Definition, args map[string]any) *ValidationError {
	var issues []string
	known := make(map[string]bool, len(def.Fields))

	for _, f := range def.Fields {
		known[f.Name] = true
		v, present := args[f.Name]
		if !present || v == nil {
			if f.Required {
				issues = append(issues, fmt.Sprintf("%s is required", f.Name))
			}
			continue
		}
		if !typeMatches(f.Type, v) {
			issues = append(issues, fmt.Sprintf("%s must be a %s", f.Name, f.Type))
			continue
		}
		if len(f.Enum) > 0 {
			s, _ := v.(string)
			if !contains(f.Enum, s) {
				issues = append(issues, fmt.Sprintf("%s must be one of %s", f.Name, strings.Join(f.Enum, ", ")))
			}
		}
	}
	for k := range args {
		if !known[k] {
			issues = append(issues, fmt.Sprintf("unexpected argument %s", k))
		}
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return &ValidationError{Tool: def.Name, Issues: issues}
	}
	return nil
}

func typeMatches(want string, v any) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "integer":
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	default:
		return false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
