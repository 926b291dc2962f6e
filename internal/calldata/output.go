package calldata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteDecoded writes call as JSON to <dir>/<name>.json, creating dir if
// needed and overwriting any previous file. It returns the path written.
func WriteDecoded(dir, name string, call *DecodedCall) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if name == "" {
		return "", fmt.Errorf("output name is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(call, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadDecoded reads a file written by WriteDecoded.
func ReadDecoded(path string) (*DecodedCall, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var call DecodedCall
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &call, nil
}
