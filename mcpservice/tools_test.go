package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/canvas-mcp/ident"
	"github.com/ggoodman/canvas-mcp/mcp"
	"github.com/google/go-cmp/cmp"
)

type emptyArgs struct{}

func TestNewTool_ReflectsSchema(t *testing.T) {
	tool := NewTool[courseArgs]("get_course", func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[courseArgs]) error {
		return nil
	}, WithToolDescription("Fetch a course"), WithToolCacheTTL(10*time.Minute))

	if tool.Descriptor.Name != "get_course" || tool.Descriptor.Description != "Fetch a course" {
		t.Fatalf("unexpected descriptor: %+v", tool.Descriptor)
	}
	if !tool.Cacheable() || tool.CacheTTL != 10*time.Minute {
		t.Fatalf("cache ttl not applied: %v", tool.CacheTTL)
	}

	schema := tool.Descriptor.InputSchema
	if diff := cmp.Diff([]string{"course_identifier"}, schema.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	course := schema.Properties["course_identifier"]
	if !course.IsIdentifier() {
		b, _ := json.Marshal(course)
		t.Fatalf("identifier field should accept string|integer, got %s", b)
	}
	if course.Description == "" {
		t.Fatal("field description lost")
	}
	if !schema.Properties["assignment_id"].IsIdentifier() {
		t.Fatal("pointer identifier should also be string|integer")
	}
	if diff := cmp.Diff([]any{"past", "upcoming"}, schema.Properties["bucket"].Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
	if got := schema.Properties["limit"].Type; got != "integer" {
		t.Fatalf("limit type = %q", got)
	}
	if !schema.AdditionalProperties {
		t.Fatal("unknown fields must be tolerated")
	}
}

func TestNewTool_HandlerReceivesTypedArgs(t *testing.T) {
	var got courseArgs
	tool := NewTool[courseArgs]("get_course", func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[courseArgs]) error {
		got = r.Args()
		return w.AppendJSON(map[string]any{"id": r.Args().CourseIdentifier.String()})
	})

	args, err := ValidateArguments(tool.Descriptor.InputSchema, json.RawMessage(`{"course_identifier":108367,"limit":3.0}`))
	if err != nil {
		t.Fatal(err)
	}
	res, err := tool.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !got.CourseIdentifier.Equal(ident.Int(108367)) || got.Limit != 3 {
		t.Fatalf("unexpected args: %+v", got)
	}
	if len(res.Content) != 1 || res.Content[0].Type != mcp.ContentTypeText {
		t.Fatalf("unexpected content: %+v", res.Content)
	}
	if diff := cmp.Diff(map[string]any{"id": "108367"}, res.StructuredContent); diff != "" {
		t.Fatalf("structured content mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTool_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	tool := NewTool[emptyArgs]("fail", func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[emptyArgs]) error {
		return boom
	})
	if _, err := tool.Handler(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestToolsContainer_RegistrationOrderAndLookup(t *testing.T) {
	noop := func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[emptyArgs]) error { return nil }
	c, err := NewToolsContainer(
		NewTool[emptyArgs]("b", noop),
		NewTool[emptyArgs]("a", noop),
		NewTool[emptyArgs]("c", noop),
	)
	if err != nil {
		t.Fatalf("NewToolsContainer: %v", err)
	}
	var names []string
	for _, tool := range c.List() {
		names = append(names, tool.Name)
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, names); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d", c.Len())
	}
	if _, ok := c.Lookup("a"); !ok {
		t.Fatal("Lookup(a) failed")
	}
	if _, ok := c.Lookup("frobulate"); ok {
		t.Fatal("Lookup of unknown tool succeeded")
	}
}

func TestToolsContainer_RejectsDuplicates(t *testing.T) {
	noop := func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[emptyArgs]) error { return nil }
	if _, err := NewToolsContainer(NewTool[emptyArgs]("x", noop), NewTool[emptyArgs]("x", noop)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	c, _ := NewToolsContainer()
	if err := c.Register(StaticTool{Descriptor: mcp.Tool{Name: "nohandler"}}); err == nil {
		t.Fatal("expected registration without handler to fail")
	}
}

func TestToolResponseWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := newToolResponseWriter(ctx)
	if err := w.AppendText("hello"); err != nil {
		t.Fatal(err)
	}
	w.SetMeta("source", "test")
	res := w.Result()
	if len(res.Content) != 1 || res.Content[0].Text != "hello" || res.Meta["source"] != "test" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := w.AppendText("late"); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}

	w2 := newToolResponseWriter(ctx)
	cancel()
	if err := w2.AppendText("x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestNewTool_DecodeFailureNamesTheField(t *testing.T) {
	type pageArgs struct {
		Pages uint8 `json:"pages"`
	}
	tool := NewTool[pageArgs]("list_pages", func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[pageArgs]) error {
		t.Fatal("handler must not run")
		return nil
	})

	args, err := ValidateArguments(tool.Descriptor.InputSchema, json.RawMessage(`{"pages":300}`))
	if err != nil {
		t.Fatalf("ValidateArguments: %v", err)
	}
	_, err = tool.Handler(context.Background(), args)
	var ipe *InvalidParamsError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidParamsError, got %v", err)
	}
	want := &InvalidParamsError{Field: "pages", Reason: "value is out of range", Expected: "integer", Actual: "number"}
	if diff := cmp.Diff(want, ipe); diff != "" {
		t.Fatalf("error mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(ipe.Error(), "uint8") || strings.Contains(ipe.Error(), "pageArgs") {
		t.Fatalf("error leaks Go type names: %v", ipe)
	}
}
