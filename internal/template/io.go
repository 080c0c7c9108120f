package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Format is an on-disk serialization of a template.
type Format string

const (
	FormatJSON5 Format = "json5"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json5", "jsonc":
		return FormatJSON5, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported template format %q (valid: json5, json, yaml)", s)
	}
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatJSON5
	}
}

// Extension returns the file extension (with dot) for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".json5"
	}
}

// Standardize converts relaxed JSON (comments, trailing commas) to standard JSON.
func Standardize(data []byte) ([]byte, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid relaxed JSON: %w", err)
	}
	return std, nil
}

// Parse decodes a relaxed-JSON template document.
func Parse(data []byte) (*SpecialistTemplate, error) {
	std, err := Standardize(data)
	if err != nil {
		return nil, err
	}
	var t SpecialistTemplate
	if err := json.Unmarshal(std, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return &t, nil
}

// ParseYAML decodes a YAML template document.
func ParseYAML(data []byte) (*SpecialistTemplate, error) {
	std, err := YAMLToJSON(data)
	if err != nil {
		return nil, err
	}
	var t SpecialistTemplate
	if err := json.Unmarshal(std, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return &t, nil
}

// YAMLToJSON re-encodes a YAML document as JSON so it can flow through the
// same decoder and schema as relaxed-JSON templates.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	std, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("YAML document is not representable as JSON: %w", err)
	}
	return std, nil
}

// ReadDocument reads a template file and returns it as standard JSON bytes,
// regardless of the on-disk format.
func ReadDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	var std []byte
	if FormatForPath(path) == FormatYAML {
		std, err = YAMLToJSON(data)
	} else {
		std, err = Standardize(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	return std, nil
}

// Load reads a template from disk, choosing the decoder by extension.
func Load(path string) (*SpecialistTemplate, error) {
	std, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	var t SpecialistTemplate
	if err := json.Unmarshal(std, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", path, err)
	}
	return &t, nil
}

// Marshal serializes a template in the given format.
func Marshal(t *SpecialistTemplate, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template %s: %w", t.Name, err)
	}
	if format != FormatYAML {
		return append(data, '\n'), nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal template %s as YAML: %w", t.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the template atomically, choosing the format by extension.
func Save(path string, t *SpecialistTemplate) error {
	data, err := Marshal(t, FormatForPath(path))
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0644)
}

// WriteFileAtomic writes data to a temp file in the target directory and renames
// it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Clone returns a deep copy, including every Extra side-map.
func (t *SpecialistTemplate) Clone() *SpecialistTemplate {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		// Every field is JSON-native; a failure here is a programming error.
		panic(fmt.Sprintf("template: clone marshal: %v", err))
	}
	var out SpecialistTemplate
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("template: clone unmarshal: %v", err))
	}
	return &out
}
