// Package vault is the storage boundary for notes and recordings. All paths
// are vault-relative, normalized, and confined to the vault root.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when a vault path does not exist.
	ErrNotFound = errors.New("vault file not found")
	// ErrPathEscape is returned when a path would resolve outside the vault.
	ErrPathEscape = errors.New("path escapes vault root")
)

// Vault abstracts the document store the pipeline writes into.
type Vault interface {
	CreateBinary(path string, data []byte) error
	CreateText(path string, content string) error
	ReadBinary(path string) ([]byte, error)
	ReadText(path string) (string, error)
	Rename(oldPath, newPath string) error
	Delete(path string) error
	Exists(path string) (bool, error)
	// ProcessText applies mutate to the file's content and writes the result
	// back in place.
	ProcessText(path string, mutate func(content string) string) error
	// ProcessFrontmatter applies mutate to the YAML frontmatter block of a
	// markdown file, creating the block when absent.
	ProcessFrontmatter(path string, mutate func(fm map[string]any)) error
}

// dirVault stores files under a single root directory on disk.
type dirVault struct {
	root string
}

// NewDirVault opens (creating if needed) a vault rooted at dir.
func NewDirVault(dir string) (Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create vault root: %w", err)
	}
	return &dirVault{root: abs}, nil
}

// resolve normalizes a vault-relative path and rejects escapes.
func (v *dirVault) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}
	return filepath.Join(v.root, cleaned), nil
}

func (v *dirVault) write(path string, data []byte) error {
	full, err := v.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (v *dirVault) CreateBinary(path string, data []byte) error {
	return v.write(path, data)
}

func (v *dirVault) CreateText(path string, content string) error {
	return v.write(path, []byte(content))
}

func (v *dirVault) ReadBinary(path string) ([]byte, error) {
	full, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (v *dirVault) ReadText(path string) (string, error) {
	data, err := v.ReadBinary(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (v *dirVault) Rename(oldPath, newPath string) error {
	oldFull, err := v.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := v.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

func (v *dirVault) Delete(path string) error {
	full, err := v.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (v *dirVault) Exists(path string) (bool, error) {
	full, err := v.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

func (v *dirVault) ProcessText(path string, mutate func(content string) string) error {
	content, err := v.ReadText(path)
	if err != nil {
		return err
	}
	return v.CreateText(path, mutate(content))
}
