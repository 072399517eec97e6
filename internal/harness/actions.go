package harness

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/blockdoc/internal/ir"
)

// DecodeActions converts actions decoded from YAML into block actions.
//
// YAML yields untyped maps; they are re-encoded as JSON so that actions
// written in YAML and JSON go through the same decoder.
func DecodeActions(raw []map[string]any) ([]ir.BlockAction, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, ir.Wrap(ir.KindDecodingError, "actions are not representable as JSON", err)
	}
	return ParseActionsJSON(data)
}

// ParseActionsJSON decodes a JSON array of block actions.
func ParseActionsJSON(data []byte) ([]ir.BlockAction, error) {
	var actions []ir.BlockAction
	if err := json.Unmarshal(data, &actions); err != nil {
		if ir.KindOf(err) != "" {
			return nil, err
		}
		return nil, ir.Wrap(ir.KindDecodingError, "invalid actions", err)
	}
	for i, a := range actions {
		if a.Action == "" {
			return nil, ir.InvalidOperation(fmt.Sprintf("action %d: action is required", i))
		}
	}
	return actions, nil
}
