package installer

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"jgfinder/internal/extensions"
)

// Manifest is an extension manifest file.
type Manifest struct {
	XMLName      xml.Name `xml:"extension"`
	Type         string   `xml:"type,attr"`
	Group        string   `xml:"group,attr,omitempty"`
	Method       string   `xml:"method,attr,omitempty"`
	Name         string   `xml:"name"`
	Version      string   `xml:"version"`
	AutoActivate bool     `xml:"autoactivate,omitempty"`
}

// ReadManifest parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// WriteManifest writes m to path, creating parent directories.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ManifestPath returns where a plugin's manifest is installed below
// pluginsDir: <folder>/<element>/<element>.xml.
func ManifestPath(pluginsDir string, k extensions.Key) string {
	return filepath.Join(pluginsDir, k.Folder, k.Element, k.Element+".xml")
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
