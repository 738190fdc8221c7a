package manager

import (
	"os"
	"strings"

	"triaged/pkg/types"
)

// resolveModel turns a configured model id into a ModelSpec. An existing file
// path wins, then a registry entry matched by file name with or without its
// extension; anything else is passed through as is.
func (m *Manager) resolveModel(s types.Settings) ModelSpec {
	spec := ModelSpec{ID: s.ModelID, Path: s.ModelID, AdapterPath: s.AdapterPath}
	if fi, err := os.Stat(s.ModelID); err == nil && !fi.IsDir() {
		return spec
	}
	if mdl, ok := m.getModelByID(s.ModelID); ok {
		spec.Path = mdl.Path
	}
	return spec
}

// Helper: find model in registry by id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id || strings.TrimSuffix(mdl.ID, ".gguf") == id || strings.TrimSuffix(mdl.ID, ".GGUF") == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}
