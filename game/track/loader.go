package track

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extensions lists the track file extensions the loader understands
var Extensions = []string{".yaml", ".yml", ".json"}

// IsTrackFile reports whether name has a supported track extension
func IsTrackFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Parse decodes raw track data. The format is chosen from the extension
// (".json" or ".yaml"/".yml").
func Parse(raw []byte, ext string) (*Data, error) {
	var data Data
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse track json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse track yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported track format %q", ext)
	}
	return &data, nil
}

// ReadFile reads and parses a track file without building it
func ReadFile(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, path)
		}
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// LoadFile reads, parses and builds a track file
func LoadFile(path string) (*Track, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(data)
}

// Marshal encodes track data in the format matching ext
func Marshal(data *Data, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return json.MarshalIndent(data, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(data)
	default:
		return nil, fmt.Errorf("unsupported track format %q", ext)
	}
}
