package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("error.not_your_turn", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got == "" {
		t.Fatal("empty rendered message")
	}

	got, err = c.Render("error.illegal_move", map[string]string{"Move": "e2e5"})
	if err != nil {
		t.Fatalf("render with data: %v", err)
	}
	if !strings.Contains(got, "e2e5") {
		t.Fatalf("move not interpolated: %q", got)
	}
}

func TestMissingKeyFails(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Render("error.no_such_key", nil); err == nil {
		t.Fatal("unknown key rendered")
	}
	// missingkey=error: template fields must be satisfied by data
	if _, err := c.Render("error.illegal_move", map[string]string{}); err == nil {
		t.Fatal("rendered despite missing template data")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "error:\n  not_your_turn: \"Hold on, {{.Username}}.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("error.not_your_turn", map[string]string{"Username": "alice"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Hold on, alice." {
		t.Fatalf("override not applied: %q", got)
	}

	// untouched keys keep their embedded defaults
	if _, err := c.Render("error.game_finished", nil); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("error:\n  conflict: \"dup\"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if _, err := New(dir); err == nil {
		t.Fatal("duplicate keys across override files accepted")
	}
}
