package models

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed embedded_manifest.yaml
var embeddedManifest []byte

// Variant describes one downloadable ggml model.
type Variant struct {
	DisplayName string `yaml:"display_name"`
	Filename    string `yaml:"filename"`
	URL         string `yaml:"url,omitempty"`
	SHA256      string `yaml:"sha256,omitempty"`
	SizeBytes   int64  `yaml:"size_bytes,omitempty"`
}

// Manifest maps variant names to their artefacts.
type Manifest struct {
	Variants map[string]Variant `yaml:"variants"`
}

// DefaultManifest returns the manifest compiled into the binary.
func DefaultManifest() (Manifest, error) {
	return LoadManifest(bytes.NewReader(embeddedManifest))
}

// LoadManifest decodes a YAML manifest and checks that every variant names
// a file.
func LoadManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("models: decode manifest: %w", err)
	}
	for name, v := range m.Variants {
		if v.Filename == "" {
			return Manifest{}, fmt.Errorf("models: variant %q has no filename", name)
		}
	}
	return m, nil
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("models: encode manifest: %w", err)
	}
	return enc.Close()
}

// Names returns the variant names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m.Variants))
	for name := range m.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
