package prompt

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirmOverwrite_NonInteractive(t *testing.T) {
	c := Confirmer{
		In:            bytes.NewBufferString("y\n"),
		IsInteractive: func() bool { return false },
	}
	ok, err := c.ConfirmOverwrite("out.gif", false)
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected error for non-interactive confirm, got ok=%v err=%v", ok, err)
	}
}

func TestConfirmOverwrite_Force(t *testing.T) {
	c := Confirmer{
		In:            bytes.NewBufferString("n\n"),
		IsInteractive: func() bool { return false },
	}
	ok, err := c.ConfirmOverwrite("out.gif", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true for forced overwrite")
	}
}

func TestConfirmOverwrite_Interactive(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := Confirmer{
			In:            bytes.NewBufferString(tt.input),
			Out:           &out,
			IsInteractive: func() bool { return true },
		}
		ok, err := c.ConfirmOverwrite("out.gif", false)
		if err != nil {
			t.Fatalf("input %q: unexpected error: %v", tt.input, err)
		}
		if ok != tt.want {
			t.Fatalf("input %q: ok = %v, want %v", tt.input, ok, tt.want)
		}
		if !strings.Contains(out.String(), "out.gif already exists") {
			t.Fatalf("prompt not written: %q", out.String())
		}
	}
}
