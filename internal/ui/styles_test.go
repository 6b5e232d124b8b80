package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	m.Run()
}

func TestConfigure_PlainWhenPiped(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe() failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if IsTerminal(w) {
		t.Fatal("IsTerminal() = true for a pipe")
	}
	Configure(w)
	if got := lipgloss.ColorProfile(); got != termenv.Ascii {
		t.Errorf("ColorProfile() = %v, want Ascii", got)
	}
}

func TestKeyValues_Aligned(t *testing.T) {
	out := KeyValues([]Field{
		{Key: "Rows", Value: "12"},
		{Key: "Pending", Value: "3"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("KeyValues() lines = %d, want 2: %q", len(lines), out)
	}
	if strings.Index(lines[0], "12") != strings.Index(lines[1], "3") {
		t.Errorf("values not aligned:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "  Pending:") {
		t.Errorf("line = %q", lines[1])
	}
}

func TestRender_PlainProfile(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"accent", RenderAccent("sync"), "sync"},
		{"pass", RenderPass("✓"), "✓"},
		{"warn", RenderWarn("⚠"), "⚠"},
		{"fail", RenderFail("✗"), "✗"},
		{"count zero", Count(0), "0"},
		{"count pending", Count(4), "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
