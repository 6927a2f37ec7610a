package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestVault(t *testing.T) Vault {
	t.Helper()
	v, err := NewDirVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirVault: %v", err)
	}
	return v
}

func TestVaultRoundTrip(t *testing.T) {
	v := newTestVault(t)

	if err := v.CreateText("notes/hello.md", "hello"); err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	got, err := v.ReadText("notes/hello.md")
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != "hello" {
		t.Errorf("ReadText = %q", got)
	}

	data := []byte{0x52, 0x49, 0x46, 0x46}
	if err := v.CreateBinary("recordings/a.wav", data); err != nil {
		t.Fatalf("CreateBinary: %v", err)
	}
	raw, err := v.ReadBinary("recordings/a.wav")
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if string(raw) != string(data) {
		t.Errorf("ReadBinary = %v", raw)
	}
}

func TestVaultExistsRenameDelete(t *testing.T) {
	v := newTestVault(t)

	if err := v.CreateText("a.md", "x"); err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	if ok, _ := v.Exists("a.md"); !ok {
		t.Error("Exists(a.md) = false")
	}
	if ok, _ := v.Exists("missing.md"); ok {
		t.Error("Exists(missing.md) = true")
	}

	if err := v.Rename("a.md", "nested/b.md"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if ok, _ := v.Exists("a.md"); ok {
		t.Error("old path still exists after rename")
	}
	if got, _ := v.ReadText("nested/b.md"); got != "x" {
		t.Errorf("renamed content = %q", got)
	}

	if err := v.Delete("nested/b.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := v.Exists("nested/b.md"); ok {
		t.Error("file still exists after delete")
	}
	// Deleting a missing file is not an error.
	if err := v.Delete("nested/b.md"); err != nil {
		t.Errorf("Delete on missing file: %v", err)
	}
}

func TestVaultRejectsEscapes(t *testing.T) {
	v := newTestVault(t)

	for _, path := range []string{"../outside.md", "a/../../outside.md", "/etc/passwd"} {
		if err := v.CreateText(path, "x"); !errors.Is(err, ErrPathEscape) {
			t.Errorf("CreateText(%q) err = %v, want ErrPathEscape", path, err)
		}
	}
}

func TestVaultConfinesWritesToRoot(t *testing.T) {
	dir := t.TempDir()
	v, err := NewDirVault(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatalf("NewDirVault: %v", err)
	}
	if err := v.CreateText("deep/nested/note.md", "x"); err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vault", "deep", "nested", "note.md")); err != nil {
		t.Fatalf("file not under root: %v", err)
	}
}

func TestVaultReadMissing(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.ReadText("missing.md"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProcessText(t *testing.T) {
	v := newTestVault(t)
	if err := v.CreateText("a.md", "before MARKER after"); err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	err := v.ProcessText("a.md", func(content string) string {
		return strings.Replace(content, "MARKER", "value", 1)
	})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if got, _ := v.ReadText("a.md"); got != "before value after" {
		t.Errorf("content = %q", got)
	}
}

func TestProcessFrontmatter(t *testing.T) {
	v := newTestVault(t)

	t.Run("adds block to plain file", func(t *testing.T) {
		if err := v.CreateText("plain.md", "# Title\n\nbody\n"); err != nil {
			t.Fatalf("CreateText: %v", err)
		}
		err := v.ProcessFrontmatter("plain.md", func(fm map[string]any) {
			fm["source"] = "recording.wav"
		})
		if err != nil {
			t.Fatalf("ProcessFrontmatter: %v", err)
		}
		got, _ := v.ReadText("plain.md")
		if !strings.HasPrefix(got, "---\n") {
			t.Errorf("missing frontmatter block: %q", got)
		}
		if !strings.Contains(got, "source: recording.wav") {
			t.Errorf("missing key: %q", got)
		}
		if !strings.Contains(got, "# Title\n\nbody\n") {
			t.Errorf("body lost: %q", got)
		}
	})

	t.Run("mutates existing block", func(t *testing.T) {
		if err := v.CreateText("fm.md", "---\ntags: old\n---\nbody\n"); err != nil {
			t.Fatalf("CreateText: %v", err)
		}
		err := v.ProcessFrontmatter("fm.md", func(fm map[string]any) {
			fm["tags"] = "new"
		})
		if err != nil {
			t.Fatalf("ProcessFrontmatter: %v", err)
		}
		got, _ := v.ReadText("fm.md")
		if !strings.Contains(got, "tags: new") {
			t.Errorf("value not updated: %q", got)
		}
		if strings.Contains(got, "tags: old") {
			t.Errorf("old value retained: %q", got)
		}
		if !strings.Contains(got, "body\n") {
			t.Errorf("body lost: %q", got)
		}
	})
}
