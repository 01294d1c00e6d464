package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultManifest is the manifest file consulted for classification.
const DefaultManifest = "package.json"

// Manifest is the part of a package manifest classification needs. Values are
// kept raw; only key presence matters.
type Manifest struct {
	Dependencies map[string]json.RawMessage `json:"dependencies"`
	Scripts      map[string]json.RawMessage `json:"scripts"`
}

// ParseManifest decodes a manifest document. The document must be a JSON
// object; dependencies and scripts, when present, must be objects. A null
// mapping is rejected rather than read as empty.
func ParseManifest(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("manifest is not a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	for _, key := range []string{"dependencies", "scripts"} {
		if raw, ok := fields[key]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, fmt.Errorf("manifest %s is null", key)
		}
	}
	var m Manifest
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// HasDependency reports whether name is a key of the dependencies mapping.
func (m *Manifest) HasDependency(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Dependencies[name]
	return ok
}

// HasScript reports whether name is a key of the scripts mapping.
func (m *Manifest) HasScript(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Scripts[name]
	return ok
}
