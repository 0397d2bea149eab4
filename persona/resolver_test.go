package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveMappedID(t *testing.T) {
	r := NewResolver(map[int64]string{100: "Alice"})
	if got := r.Resolve(100, "fallback"); got != "Alice" {
		t.Errorf("expected mapped name, got %q", got)
	}
}

func TestResolveFallback(t *testing.T) {
	r := NewResolver(map[int64]string{100: "Alice"})
	if got := r.Resolve(200, "Bob Smith"); got != "Bob Smith" {
		t.Errorf("expected fallback name, got %q", got)
	}
}

func TestFromStrings(t *testing.T) {
	r, err := FromStrings(map[string]string{"100": "Alice", "-42": "Group Admin"})
	if err != nil {
		t.Fatalf("FromStrings: %v", err)
	}
	if got := r.Resolve(-42, "x"); got != "Group Admin" {
		t.Errorf("expected mapped name for negative id, got %q", got)
	}
}

func TestFromStringsRejectsBadID(t *testing.T) {
	if _, err := FromStrings(map[string]string{"alice": "Alice"}); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	content := "\"100\": Alice\n\"200\": Bob\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	if got := r.Resolve(200, "x"); got != "Bob" {
		t.Errorf("expected Bob, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
