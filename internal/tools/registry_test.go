package tools

import (
	"context"
	"testing"
)

type echoTool struct{ name string }

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echoes its input" }
func (e *echoTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (e *echoTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	v, _ := args["text"].(string)
	return v, nil
}

type panicTool struct{}

func (panicTool) Name() string                            { return "panics" }
func (panicTool) Description() string                     { return "always panics" }
func (panicTool) ParametersSchema() map[string]interface{} { return map[string]interface{}{} }
func (panicTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	panic("boom")
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Execute(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered tool")
	}
	te, ok := err.(*ToolError)
	if !ok || te.Kind != "UnknownTool" {
		t.Fatalf("expected ToolError{Kind: UnknownTool}, got %#v", err)
	}
}

func TestRegistryExecuteRecoversFromPanic(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(panicTool{})

	_, err := r.Execute(context.Background(), "panics", nil)
	if err == nil {
		t.Fatal("expected an error from a panicking tool")
	}
	te, ok := err.(*ToolError)
	if !ok || te.Kind != "Runtime" {
		t.Fatalf("expected ToolError{Kind: Runtime}, got %#v", err)
	}
}

func TestRegistryDefinitionsStableSortedByName(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&echoTool{name: "zeta"})
	r.Register(&echoTool{name: "alpha"})
	r.Register(&echoTool{name: "mid"})

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 defs, got %d", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if defs[i].Function.Name != w {
			t.Fatalf("defs[%d] = %q, want %q", i, defs[i].Function.Name, w)
		}
	}
}

func TestRegistryUnregisterRemovesTool(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&echoTool{name: "t"})
	if !r.Has("t") {
		t.Fatal("expected t to be registered")
	}
	r.Unregister("t")
	if r.Has("t") {
		t.Fatal("expected t to be unregistered")
	}
}
