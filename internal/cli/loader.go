package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blockdoc/internal/harness"
	"github.com/roach88/blockdoc/internal/ir"
)

// Command error codes. Document errors use their kind instead.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadActions reads a batch of block actions from a JSON or YAML file.
// The format is chosen by extension: .json is JSON, anything else YAML.
// A YAML file holds either a list of actions or a mapping with an
// "actions" list.
func LoadActions(path string) ([]ir.BlockAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return harness.ParseActionsJSON(data)
	}
	return parseActionsYAML(data)
}

func parseActionsYAML(data []byte) ([]ir.BlockAction, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, ir.Wrap(ir.KindDecodingError, "invalid YAML", err)
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = *node.Content[0]
	}

	var raw []map[string]any
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&raw); err != nil {
			return nil, ir.Wrap(ir.KindDecodingError, "invalid actions", err)
		}
	case yaml.MappingNode:
		var file struct {
			Actions []map[string]any `yaml:"actions"`
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, ir.Wrap(ir.KindDecodingError, "invalid actions file", err)
		}
		raw = file.Actions
	default:
		return nil, ir.Wrap(ir.KindDecodingError, "actions file must hold a list of actions", nil)
	}
	return harness.DecodeActions(raw)
}
