package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDocumentMetadata reads the YAML mapping attached to every uploaded
// document. An empty path yields an empty mapping.
func LoadDocumentMetadata(filePath string) (map[string]any, error) {
	if filePath == "" {
		return map[string]any{}, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening metadata file: %w", err)
	}
	defer file.Close()

	return ParseDocumentMetadata(file)
}

// ParseDocumentMetadata parses a metadata mapping from an io.Reader.
func ParseDocumentMetadata(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("parsing metadata file: %w", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	return metadata, nil
}
