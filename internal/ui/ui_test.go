package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRender_PlainWithoutColor(t *testing.T) {
	for _, fn := range []func(string) string{RenderAccent, RenderPass, RenderWarn, RenderFail, RenderMuted} {
		if got := fn("ok"); got != "ok" {
			t.Errorf("render = %q, want plain text on an ascii profile", got)
		}
	}
	if got := RenderState("unknown"); got != "unknown" {
		t.Errorf("RenderState(unknown) = %q", got)
	}
}

func TestTable(t *testing.T) {
	out := Table([]string{"ID", "Name"}, [][]string{{"1", "Asha"}, {"2", "Ravi"}})
	for _, want := range []string{"ID", "Name", "Asha", "Ravi"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) < 5 {
		t.Errorf("table has %d lines, want border, header, separator and rows:\n%s", len(lines), out)
	}
}
