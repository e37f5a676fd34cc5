package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// MockSwapTool records executions so tests can assert it was (not) called
type MockSwapTool struct {
	calls    int
	lastArgs Arguments
}

func (t *MockSwapTool) Name() string {
	return "ExecuteSwap"
}

func (t *MockSwapTool) Description() string {
	return "A mock swap tool"
}

func (t *MockSwapTool) Schema() Schema {
	return NewSchema(
		Field{Name: "from_token_mint", Type: TypeString, Required: true},
		Field{Name: "to_token_mint", Type: TypeString, Required: true},
		Field{Name: "amount", Type: TypeInteger, Required: true},
	)
}

func (t *MockSwapTool) Execute(ctx context.Context, args Arguments) (*Result, error) {
	t.calls++
	t.lastArgs = args
	return &Result{Success: true, Output: "swapped"}, nil
}

func (t *MockSwapTool) BestPractices() string {
	return `**Swap Best Practices**:
1. Check the wallet balance first
2. Never swap more than you hold`
}

// MockBalanceTool has no arguments and no best practices
type MockBalanceTool struct {
	err error
}

func (t *MockBalanceTool) Name() string          { return "GetWalletBalance" }
func (t *MockBalanceTool) Description() string   { return "A mock balance tool" }
func (t *MockBalanceTool) BestPractices() string { return "" }
func (t *MockBalanceTool) Schema() Schema        { return NewSchema() }

func (t *MockBalanceTool) Execute(ctx context.Context, args Arguments) (*Result, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &Result{Success: true}, nil
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(&MockSwapTool{}); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	err := registry.Register(&MockSwapTool{})
	if !errors.Is(err, ErrDuplicateToolName) {
		t.Fatalf("Expected ErrDuplicateToolName, got: %v", err)
	}
	if registry.Len() != 1 {
		t.Errorf("Expected 1 tool after duplicate registration, got %d", registry.Len())
	}
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry()
	swap := &MockSwapTool{}
	if err := registry.Register(swap); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	got, err := registry.Resolve("ExecuteSwap")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != Tool(swap) {
		t.Error("Resolve should return the exact registered tool")
	}

	_, err = registry.Resolve("Missing")
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Expected ErrToolNotFound, got: %v", err)
	}
	if !strings.Contains(err.Error(), "ToolNotFound") {
		t.Errorf("Error text should name ToolNotFound, got: %s", err.Error())
	}
}

func TestRegistry_DescribeKeepsRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockSwapTool{})
	registry.Register(&MockBalanceTool{})

	for i := 0; i < 3; i++ {
		tools := registry.Describe()
		if len(tools) != 2 {
			t.Fatalf("Expected 2 tools, got %d", len(tools))
		}
		if tools[0].Name() != "ExecuteSwap" || tools[1].Name() != "GetWalletBalance" {
			t.Errorf("Unexpected order: %s, %s", tools[0].Name(), tools[1].Name())
		}
	}

	defs := registry.Definitions()
	if defs[0].Function.Name != "ExecuteSwap" {
		t.Errorf("Definitions should follow registration order, got %s first", defs[0].Function.Name)
	}
	required, _ := defs[0].Function.Parameters["required"].([]string)
	if len(required) != 3 {
		t.Errorf("Expected 3 required fields, got %v", required)
	}
}

func TestRegistry_InvokeMissingRequiredField(t *testing.T) {
	registry := NewRegistry()
	swap := &MockSwapTool{}
	registry.Register(swap)

	_, err := registry.Invoke(context.Background(), "ExecuteSwap", []byte(`{"from_token_mint": "A", "amount": 5}`))
	if !errors.Is(err, ErrInvalidToolArguments) {
		t.Fatalf("Expected ErrInvalidToolArguments, got: %v", err)
	}
	if swap.calls != 0 {
		t.Errorf("Execute must not run on invalid arguments, ran %d times", swap.calls)
	}
}

func TestRegistry_InvokeCoercesPrimitives(t *testing.T) {
	registry := NewRegistry()
	swap := &MockSwapTool{}
	registry.Register(swap)

	out, err := registry.Invoke(context.Background(), "ExecuteSwap",
		[]byte(`{"from_token_mint": "A", "to_token_mint": "B", "amount": "5000"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out != "swapped" {
		t.Errorf("Expected observation 'swapped', got %q", out)
	}
	if swap.lastArgs.Int("amount") != 5000 {
		t.Errorf("Expected amount coerced to 5000, got %v", swap.lastArgs["amount"])
	}
}

func TestRegistry_InvokeUncoercible(t *testing.T) {
	registry := NewRegistry()
	swap := &MockSwapTool{}
	registry.Register(swap)

	_, err := registry.Invoke(context.Background(), "ExecuteSwap",
		[]byte(`{"from_token_mint": "A", "to_token_mint": "B", "amount": "lots"}`))
	if !errors.Is(err, ErrInvalidToolArguments) {
		t.Fatalf("Expected ErrInvalidToolArguments, got: %v", err)
	}
	if swap.calls != 0 {
		t.Error("Execute must not run on invalid arguments")
	}
}

func TestRegistry_InvokeToolErrorBecomesText(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockBalanceTool{err: errors.New("rpc unavailable")})

	out, err := registry.Invoke(context.Background(), "GetWalletBalance", nil)
	if err != nil {
		t.Fatalf("Tool errors must not propagate, got: %v", err)
	}
	if !strings.Contains(out, "rpc unavailable") {
		t.Errorf("Observation should carry the tool error, got %q", out)
	}
}

func TestRegistry_InvokeEmptyOutput(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockBalanceTool{})

	out, err := registry.Invoke(context.Background(), "GetWalletBalance", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out != EmptyOutputPlaceholder {
		t.Errorf("Expected placeholder, got %q", out)
	}
}

func TestRegistry_BestPractices(t *testing.T) {
	registry := NewRegistry()
	if got := registry.BestPractices(); got != "" {
		t.Errorf("Expected empty string when no tools registered, got: %s", got)
	}

	registry.Register(&MockBalanceTool{})
	if got := registry.BestPractices(); got != "" {
		t.Errorf("Expected empty string when no tools have best practices, got: %s", got)
	}

	registry.Register(&MockSwapTool{})
	practices := registry.BestPractices()
	if !strings.Contains(practices, "# Tool Usage Best Practices") {
		t.Error("Best practices should contain header")
	}
	if !strings.Contains(practices, "Never swap more than you hold") {
		t.Error("Best practices should contain specific practice text")
	}
}
