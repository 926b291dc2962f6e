package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingInterface is returned when neither an artifact name nor a
// descriptor file was supplied.
var ErrMissingInterface = errors.New("missing interface: supply a contract name or an ABI descriptor file")

// Artifact is a compiled contract artifact. Only contractName and abi are
// read; bytecode and metadata are ignored.
type Artifact struct {
	ContractName string     `json:"contractName"`
	ABI          []ABIEntry `json:"abi"`
}

// Interface parses the artifact's ABI into lookup tables.
func (a *Artifact) Interface() (*Interface, error) {
	return NewInterface(a.ContractName, a.ABI)
}

// Source says where an interface comes from. DescriptorPath wins when set;
// otherwise ContractName is looked up as <ArtifactsDir>/<ContractName>.json
// and then among the built-in artifacts.
type Source struct {
	ArtifactsDir   string
	ContractName   string
	DescriptorPath string
}

// LoadInterface resolves src into an Interface.
func LoadInterface(src Source) (*Interface, error) {
	switch {
	case src.DescriptorPath != "":
		a, err := LoadArtifact(src.DescriptorPath)
		if err != nil {
			return nil, err
		}
		return a.Interface()

	case src.ContractName != "":
		if src.ArtifactsDir != "" {
			path := ArtifactPath(src.ArtifactsDir, src.ContractName)
			if _, err := os.Stat(path); err == nil {
				a, err := LoadArtifact(path)
				if err != nil {
					return nil, err
				}
				return a.Interface()
			}
		}
		if b, ok := GetBuiltin(src.ContractName); ok {
			return b.Artifact.Interface()
		}
		return nil, fmt.Errorf("%w: no artifact for %s in %q", ErrContractNotFound, src.ContractName, src.ArtifactsDir)
	}
	return nil, ErrMissingInterface
}

// ArtifactPath returns <dir>/<name>.json.
func ArtifactPath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// LoadArtifact loads a file that is either:
//   - a compiled artifact: {"contractName": "...", "abi": [...], ...}
//   - a standalone descriptor: [{"type":"function",...}, ...]
//
// Both formats are detected automatically. A standalone descriptor is named
// after its file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read ABI file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("ABI file is empty: %s", path)
	}
	return ParseArtifact(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// ParseArtifact parses artifact or descriptor bytes. fallbackName is used
// when the input carries no contractName.
func ParseArtifact(data []byte, fallbackName string) (*Artifact, error) {
	var raw struct {
		ContractName string          `json:"contractName"`
		ABI          json.RawMessage `json:"abi"`
	}
	if json.Unmarshal(data, &raw) == nil && len(raw.ABI) > 1 && raw.ABI[0] == '[' {
		abi, err := parseABI(raw.ABI)
		if err != nil {
			return nil, err
		}
		name := raw.ContractName
		if name == "" {
			name = fallbackName
		}
		if err := validateABI(abi, name); err != nil {
			return nil, err
		}
		return &Artifact{ContractName: name, ABI: abi}, nil
	}

	abi, err := parseABI(data)
	if err != nil {
		return nil, err
	}
	if err := validateABI(abi, fallbackName); err != nil {
		return nil, err
	}
	return &Artifact{ContractName: fallbackName, ABI: abi}, nil
}

func parseABI(data []byte) ([]ABIEntry, error) {
	var abi []ABIEntry
	if err := json.Unmarshal(data, &abi); err != nil {
		data = bytes.TrimSpace(data)
		if len(data) > 0 && data[0] == '{' {
			return nil, fmt.Errorf("file is a JSON object without an \"abi\" array")
		}
		return nil, fmt.Errorf("invalid ABI JSON: expected an array of function/event definitions: %w", err)
	}
	return abi, nil
}

// validateABI checks that the parsed ABI has at least one function or event.
func validateABI(abi []ABIEntry, name string) error {
	if len(abi) == 0 {
		return fmt.Errorf("ABI is empty (no functions or events found): %s", name)
	}
	for _, e := range abi {
		if e.Type == "function" || e.Type == "event" {
			return nil
		}
	}
	return fmt.Errorf("ABI has %d entries but none are functions or events: %s", len(abi), name)
}
