package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestPrinterPlainWithoutTTY(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Successf("done %d", 3)
	p.Warnf("careful")
	p.Errorf("broken")

	out := buf.String()
	for _, want := range []string{"✓ done 3", "⚠ careful", "✗ broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("non-TTY output contains ANSI escapes")
	}
}

func TestDiffLinePassthrough(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	lines := []string{
		"--- snapshot/a.txt",
		"+++ worktree/a.txt",
		"@@ -1,3 +1,3 @@",
		"-old line",
		"+new line",
		" context",
	}
	for _, line := range lines {
		p.DiffLine(line)
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != len(lines) {
		t.Fatalf("printed %d lines, want %d", len(got), len(lines))
	}
	for i, line := range lines {
		if got[i] != line {
			t.Errorf("line %d = %q, want %q", i, got[i], line)
		}
	}
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	v := map[string]any{"id": "snap_x", "files": 2}
	if err := EncodeJSON(&buf, v); err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["id"] != "snap_x" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestEncodeToon(t *testing.T) {
	var buf bytes.Buffer
	v := struct {
		ID    string `json:"id"`
		Files int    `json:"files"`
	}{ID: "snap_x", Files: 2}
	if err := EncodeToon(&buf, v); err != nil {
		t.Fatalf("EncodeToon failed: %v", err)
	}
	if !strings.Contains(buf.String(), "snap_x") {
		t.Errorf("toon output missing value:\n%s", buf.String())
	}
}
