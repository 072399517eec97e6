package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Block is one node of the document tree.
//
// Empty ParentID and PrevID mean absent. Delta is nil for blocks without
// text and non-nil (possibly empty) for text-bearing blocks.
type Block struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes Object `json:"attributes"`
	Delta      Delta  `json:"delta,omitzero"`
	ParentID   string `json:"parentId,omitempty"`
	PrevID     string `json:"prevId,omitempty"`
}

// Device returns the device bucket of the block.
func (b Block) Device() string {
	if d, ok := b.Attributes.Text(AttrDevice); ok {
		return d
	}
	return UnknownDevice
}

// Timestamp returns the raw timestamp attribute, or "" when unset.
func (b Block) Timestamp() string {
	ts, _ := b.Attributes.Text(AttrTimestamp)
	return ts
}

// DocumentState is the portable snapshot of a document.
// Children holds the derived order of each parent's children; blocks
// without a parent are listed under TopLevelGroup.
type DocumentState struct {
	DocID    string              `json:"docId"`
	RootID   string              `json:"rootId,omitempty"`
	Blocks   map[string]Block    `json:"blocks"`
	Children map[string][]string `json:"orderedChildrenByParent"`
}

// ActionKind tags a block action.
type ActionKind string

const (
	ActionInsert ActionKind = "insert"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
	ActionMove   ActionKind = "move"
)

// UnmarshalJSON accepts the kind in any letter case ("Insert", "insert").
func (k *ActionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("action must be a string: %w", err)
	}
	kind, err := ParseActionKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseActionKind normalizes an action kind name.
func ParseActionKind(s string) (ActionKind, error) {
	switch kind := ActionKind(strings.ToLower(s)); kind {
	case ActionInsert, ActionUpdate, ActionDelete, ActionMove:
		return kind, nil
	}
	return "", InvalidOperation(fmt.Sprintf("unknown action %q", s))
}

// ActionBlock is the block payload of an action.
//
// Delta is the proposed full content of the block's text. Attributes are
// merged key by key into the stored attributes.
type ActionBlock struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Attributes  Object `json:"attributes,omitempty"`
	Delta       Delta  `json:"delta,omitzero"`
	ParentID    string `json:"parentId,omitempty"`
	PrevID      string `json:"prevId,omitempty"`
	NextID      string `json:"nextId,omitempty"`
	OldParentID string `json:"oldParentId,omitempty"`
}

// BlockAction is one edit intent.
// Path and OldPath are positional UI hints; order is never derived from them.
type BlockAction struct {
	Action  ActionKind  `json:"action"`
	Block   ActionBlock `json:"block"`
	Path    []uint32    `json:"path,omitempty"`
	OldPath []uint32    `json:"oldPath,omitempty"`
}
