package ir

// Version constants for the document layout and engine.
const (
	// LayoutVersion is the version of the replicated document layout.
	// Replicas with different layout versions cannot exchange updates.
	LayoutVersion = "1"

	// EngineVersion is the blockdoc engine version.
	EngineVersion = "0.1.0"
)

// Well-known identifiers.
const (
	// BlocksRoot names the root map container holding every block.
	BlocksRoot = "blocks"

	// DocumentRoot names the root map container holding document metadata.
	DocumentRoot = "document"

	// DefaultParent is the parent sentinel that is never written to a block.
	DefaultParent = "default_parent"

	// TopLevelGroup keys the children of blocks without a parent in
	// DocumentState.Children.
	TopLevelGroup = "root"

	// UnknownDevice is the device bucket for blocks without a device attribute.
	UnknownDevice = "unknown"
)

// Block field names inside the replicated block map.
const (
	FieldID         = "id"
	FieldType       = "type"
	FieldParentID   = "parentId"
	FieldPrevID     = "prevId"
	FieldAttributes = "attributes"
	FieldText       = "text"
	FieldRootID     = "rootId"
	FieldLayout     = "layout"
)

// Attribute keys consulted by reconciliation.
const (
	AttrDevice    = "device"
	AttrTimestamp = "timestamp"
)
