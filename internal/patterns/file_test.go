package patterns

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePatterns(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write patterns: %v", err)
	}
	return path
}

func TestLoadFile_PrependsOverrides(t *testing.T) {
	path := writePatterns(t, `
languages:
  en-US:
    chapter:
      - '(?i)^episode\s+(\d+)\s*(?::\s*(.*))?$'
`)
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := reg.Matcher("en")
	got, ok := m.DetectChapter("Episode 4: Fire")
	if !ok || got.Number == nil || *got.Number != 4 || got.Title != "Fire" {
		t.Errorf("expected episode override to match, got %+v ok=%v", got, ok)
	}
	if _, ok := m.DetectChapter("Chapter 2"); !ok {
		t.Error("expected built-in chapter pattern to remain")
	}

	if _, ok := Builtin().Matcher("en").DetectChapter("Episode 4"); ok {
		t.Error("override leaked into built-in tables")
	}
}

func TestLoadFile_NewLanguageWithReplace(t *testing.T) {
	path := writePatterns(t, `
languages:
  nl:
    replace: true
    chapter:
      - '(?i)^hoofdstuk\s+(\d+)\s*(?::\s*(.*))?$'
    dialogue: ['„', '"']
`)
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.Supports("nl") {
		t.Fatal("expected nl to be supported")
	}
	m := reg.Matcher("nl-BE")
	if _, ok := m.DetectChapter("Hoofdstuk 5"); !ok {
		t.Error("expected hoofdstuk heading to match")
	}
	if _, ok := m.DetectChapter("Chapter 5"); ok {
		t.Error("expected replace to drop inherited chapter patterns")
	}
	if got := m.DialogueMarkers(); len(got) != 2 || got[0] != "„" {
		t.Errorf("unexpected dialogue markers %v", got)
	}
}

func TestLoadFile_InvalidRegex(t *testing.T) {
	path := writePatterns(t, `
languages:
  en:
    section: ['(unclosed']
`)
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
	if !strings.Contains(err.Error(), "section") {
		t.Errorf("expected error to name the section list, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRegistry_Languages(t *testing.T) {
	langs := Builtin().Languages()
	if len(langs) != len(builtin) {
		t.Fatalf("expected %d languages, got %d", len(builtin), len(langs))
	}
	for i := 1; i < len(langs); i++ {
		if langs[i-1] >= langs[i] {
			t.Fatalf("languages not sorted: %v", langs)
		}
	}
}
