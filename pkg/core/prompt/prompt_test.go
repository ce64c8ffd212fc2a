package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{IDSynthesis, IDFinancialExtraction, IDQualitativeAnalysis} {
		if _, err := r.GetPrompt(id); err != nil {
			t.Errorf("built-in %s missing: %v", id, err)
		}
	}
	if r.Count() != 3 {
		t.Errorf("expected 3 built-ins, got %d", r.Count())
	}
}

func TestRenderSynthesis(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext().
		Set("Company", "Acme").
		Set("Task", "Forecast Q4").
		Set("Context", "## Financial Data\nunavailable: boom").
		Set("Sources", `["market_data"]`).
		Set("Schema", `{"type":"object"}`)

	out, err := r.Render(IDSynthesis, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Financial Forecasting AI Agent",
		"about Acme",
		"Task: Forecast Q4",
		"unavailable: boom",
		`exactly ["market_data"]`,
		`{"type":"object"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}
	// system instructions come first
	if !strings.HasPrefix(out, "You are a Financial Forecasting AI Agent") {
		t.Error("expected system prompt at the start")
	}
}

func TestRenderMissingPrompt(t *testing.T) {
	if _, err := NewRegistry().Render("nope", NewContext()); err == nil {
		t.Error("expected error for unknown prompt")
	}
}

func TestLoadDirectoryOverrides(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "prompts", "qualitative")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	override := `{"system_prompt": "Custom analyst.", "user_prompt_template": "Q={{.Query}}"}`
	if err := os.WriteFile(filepath.Join(dir, "transcript_analysis.json"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	schemaDir := filepath.Join(base, "schemas")
	os.MkdirAll(schemaDir, 0o755)
	os.WriteFile(filepath.Join(schemaDir, "forecast_output.json"), []byte(`{"type":"object"}`), 0o644)

	r := NewRegistry()
	if err := r.LoadDirectory(base); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	pt, err := r.GetPrompt(IDQualitativeAnalysis)
	if err != nil {
		t.Fatal(err)
	}
	if pt.Category != "qualitative" {
		t.Errorf("expected category from folder, got %s", pt.Category)
	}

	out, err := r.Render(IDQualitativeAnalysis, NewContext().Set("Query", "AI?"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "Custom analyst.\n\nQ=AI?" {
		t.Errorf("unexpected render %q", out)
	}

	if _, err := r.GetSchema("forecast_output"); err != nil {
		t.Errorf("schema not loaded: %v", err)
	}

	r.Reset()
	out, _ = r.Render(IDQualitativeAnalysis, NewContext().Set("Query", "AI?").Set("Context", "c"))
	if strings.HasPrefix(out, "Custom") {
		t.Error("Reset should restore the built-in")
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	if err := NewRegistry().LoadDirectory(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing prompts directory")
	}
}

func TestBuildFallsBackOnBrokenOverride(t *testing.T) {
	g := Get()
	defer g.Reset()

	g.Register(&PromptTemplate{ID: IDFinancialExtraction, UserPromptTmpl: "{{.Broken"})
	out, err := Build(IDFinancialExtraction, NewContext().Set("ReportText", "Revenue 100"))
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if !strings.Contains(out, "Revenue 100") || !strings.Contains(out, "JSON Output:") {
		t.Errorf("expected built-in extraction prompt, got %q", out)
	}
}

func TestSchemaFor(t *testing.T) {
	r := Get()
	defer r.Reset()

	if got := SchemaFor(IDSynthesis, "builtin"); got != "builtin" {
		t.Errorf("expected fallback without a loaded schema, got %q", got)
	}
	if got := SchemaFor("no.such.prompt", "builtin"); got != "builtin" {
		t.Errorf("expected fallback for unknown prompt, got %q", got)
	}

	_ = r.RegisterSchema(&ResponseSchema{ID: "forecast_output", JSONSchema: `{"type":"object"}`})
	if got := SchemaFor(IDSynthesis, "builtin"); got != `{"type":"object"}` {
		t.Errorf("expected loaded schema, got %q", got)
	}
}

func TestRenderRequiresDeclaredVariables(t *testing.T) {
	r := NewRegistry()
	_, err := r.Render(IDQualitativeAnalysis, NewContext().Set("Query", "AI?"))
	if err == nil || !strings.Contains(err.Error(), "Context") {
		t.Fatalf("expected missing Context error, got %v", err)
	}
}

func TestRenderAppliesDefaults(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&PromptTemplate{
		ID:             "test.defaults",
		UserPromptTmpl: "{{.Greeting}}, {{.Name}}",
		Variables: []PromptVariable{
			{Name: "Greeting", Default: "Hello"},
			{Name: "Name", Required: true},
		},
	})

	out, err := r.Render("test.defaults", NewContext().Set("Name", "TCS"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello, TCS" {
		t.Errorf("unexpected render %q", out)
	}

	out, _ = r.Render("test.defaults", NewContext().Set("Name", "TCS").Set("Greeting", "Hi"))
	if out != "Hi, TCS" {
		t.Errorf("context should override the default, got %q", out)
	}
}
