package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexicon-labs/lexicon-cli/internal/output"
)

func TestVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer SetVersionInfo(origVersion, origCommit, origDate)

	SetVersionInfo("0.4.0", "deadbeef", "2026-01-02")

	if version != "0.4.0" || commit != "deadbeef" || date != "2026-01-02" {
		t.Fatalf("unexpected version info %q %q %q", version, commit, date)
	}
	want := "lexicon version 0.4.0 (commit: deadbeef, built: 2026-01-02)\n"
	if got := versionTemplate(); got != want {
		t.Errorf("versionTemplate() = %q, want %q", got, want)
	}
	if rootCmd.Version != "0.4.0" {
		t.Errorf("rootCmd.Version = %q", rootCmd.Version)
	}
}

func TestGetClient(t *testing.T) {
	prevClient := client
	defer func() { client = prevClient }()

	fc := &fakeClient{}
	client = fc
	if GetClient() != fc {
		t.Error("GetClient() did not return the active client")
	}

	client = nil
	if GetClient() != nil {
		t.Error("GetClient() should be nil before initialization")
	}
}

func TestGetOutputFormat(t *testing.T) {
	prevType, prevFmt := outputType, outputFmt
	defer func() { outputType, outputFmt = prevType, prevFmt }()

	tests := []struct {
		typ  output.Format
		fmt  string
		want output.Format
	}{
		{typ: output.FormatJSON, fmt: "text", want: output.FormatJSON},
		{typ: "", fmt: "yaml", want: output.FormatYAML},
		{typ: "", fmt: "invalid", want: output.FormatText},
		{typ: output.FormatNDJSON, fmt: "table", want: output.FormatNDJSON},
	}
	for _, tt := range tests {
		outputType, outputFmt = tt.typ, tt.fmt
		if got := GetOutputFormat(); got != tt.want {
			t.Errorf("GetOutputFormat(%q, %q) = %v, want %v", tt.typ, tt.fmt, got, tt.want)
		}
	}

	outputType, outputFmt = "", "table"
	if got := GetOutputFormatString(); got != "table" {
		t.Errorf("GetOutputFormatString() = %q, want table", got)
	}
}

func TestIsTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	for name, w := range map[string]interface{ Write([]byte) (int, error) }{
		"buffer": &bytes.Buffer{},
		"file":   f,
		"nil":    nil,
	} {
		if isTerminal(w) {
			t.Errorf("isTerminal(%s) = true", name)
		}
	}
}

func TestPlainOutput(t *testing.T) {
	prevNoColor := noColor
	prevEnv := envGet
	defer func() {
		noColor = prevNoColor
		envGet = prevEnv
	}()

	envGet = func(string) string { return "" }
	noColor = false
	if !plainOutput(&bytes.Buffer{}) {
		t.Error("expected plain output for a non-terminal writer")
	}

	envGet = func(key string) string {
		if key == "NO_COLOR" {
			return "1"
		}
		return ""
	}
	if !plainOutput(os.Stdout) {
		t.Error("expected plain output when NO_COLOR is set")
	}
}

func TestConfigOutputFormatApplies(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("output_format: text\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// Piped stdout still forces json over the configured format.
	res := runCLI(t, &fakeClient{}, "", "--config", cfgPath, "health")
	if res.err != nil {
		t.Fatalf("health: %v", res.err)
	}
	if !strings.HasPrefix(res.stdout, "{") {
		t.Fatalf("expected json on a pipe, got %q", res.stdout)
	}

	res = runCLI(t, &fakeClient{}, "", "--config", cfgPath, "-o", "yaml", "health")
	if res.err != nil {
		t.Fatalf("health: %v", res.err)
	}
	if !strings.Contains(res.stdout, "status: ok") {
		t.Fatalf("expected yaml from --output, got %q", res.stdout)
	}
}

func TestRejectsQueryAndQueryFile(t *testing.T) {
	res := runCLI(t, &fakeClient{}, "", "--query", ".", "--query-file", "q.jq", "health")
	if res.err == nil || !strings.Contains(res.err.Error(), "only one of --query or --query-file") {
		t.Fatalf("expected conflict error, got %v", res.err)
	}
}
