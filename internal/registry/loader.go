package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"triaged/pkg/types"
)

// GGUFScanner discovers *.gguf model files in a directory.
type GGUFScanner struct{}

// NewGGUFScanner returns a scanner for llama.cpp model files.
func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// Scan builds a registry from the *.gguf files in dir (case-insensitive).
// ID and Name are the file name; Path is the absolute file path.
func (GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{ID: name, Name: name, Path: filepath.Join(abs, name)})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir with a GGUFScanner. An empty dir yields an empty registry.
func LoadDir(dir string) ([]types.Model, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	return NewGGUFScanner().Scan(dir)
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
