package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tradeagent/internal/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolCaller is the part of Client the adapter needs
type toolCaller interface {
	Name() string
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcp.CallToolResult, error)
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// maxToolNameLength is the function name limit of the chat completions API
const maxToolNameLength = 64

// ToolAdapter exposes one MCP tool through the tool registry
type ToolAdapter struct {
	client         toolCaller
	mcpTool        *mcp.Tool
	namespacedName string // e.g., "dexdata_get_pool"
	schema         tool.Schema
}

// NewToolAdapter creates an adapter for an MCP tool
func NewToolAdapter(client toolCaller, mcpTool *mcp.Tool) *ToolAdapter {
	name := invalidNameChars.ReplaceAllString(client.Name()+"_"+mcpTool.Name, "_")
	if len(name) > maxToolNameLength {
		name = name[:maxToolNameLength]
	}
	return &ToolAdapter{
		client:         client,
		mcpTool:        mcpTool,
		namespacedName: name,
		schema:         schemaFromMCP(mcpTool.InputSchema),
	}
}

// Name returns the namespaced tool name (server_tool)
func (a *ToolAdapter) Name() string {
	return a.namespacedName
}

func (a *ToolAdapter) Description() string {
	desc := a.mcpTool.Description
	if desc == "" {
		desc = fmt.Sprintf("MCP tool from %s server", a.client.Name())
	}
	return fmt.Sprintf("%s\n\n[MCP Server: %s]", desc, a.client.Name())
}

// BestPractices returns empty (MCP tools don't have this concept)
func (a *ToolAdapter) BestPractices() string {
	return ""
}

func (a *ToolAdapter) Schema() tool.Schema {
	return a.schema
}

// Execute calls the MCP server to execute the tool
func (a *ToolAdapter) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	result, err := a.client.CallTool(ctx, a.mcpTool.Name, map[string]any(args))
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("MCP tool execution failed: %v", err),
		}, nil
	}

	if result.IsError {
		return &tool.Result{
			Success: false,
			Error:   formatMCPError(result),
		}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  formatMCPContent(result.Content),
		Data: map[string]any{
			"mcp_server": a.client.Name(),
			"mcp_tool":   a.mcpTool.Name,
		},
	}, nil
}

// schemaFromMCP keeps the server's JSON schema for the model and derives
// the flat field list used for required-field and type checks
func schemaFromMCP(input any) tool.Schema {
	raw := toMap(input)
	if raw == nil {
		raw = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	required := map[string]bool{}
	if list, ok := raw["required"].([]any); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	props, _ := raw["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]tool.Field, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		fields = append(fields, tool.Field{
			Name:        name,
			Type:        fieldType(typ),
			Description: desc,
			Required:    required[name],
		})
	}

	return tool.Schema{Fields: fields, Raw: raw}
}

// fieldType maps JSON schema types; unions and unknown types skip coercion
func fieldType(t string) tool.FieldType {
	switch ft := tool.FieldType(t); ft {
	case tool.TypeString, tool.TypeInteger, tool.TypeNumber, tool.TypeBoolean, tool.TypeObject, tool.TypeArray:
		return ft
	}
	return ""
}

func toMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// formatMCPContent converts MCP content array to string
func formatMCPContent(content []mcp.Content) string {
	var parts []string

	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s]", c.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s]", c.MIMEType))
		default:
			data, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", item))
			} else {
				parts = append(parts, string(data))
			}
		}
	}

	return strings.Join(parts, "\n")
}

// formatMCPError extracts error message from MCP result
func formatMCPError(result *mcp.CallToolResult) string {
	if len(result.Content) > 0 {
		return formatMCPContent(result.Content)
	}
	return "MCP tool returned an error"
}
