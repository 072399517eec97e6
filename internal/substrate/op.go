package substrate

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/roach88/blockdoc/internal/ir"
)

// OpID identifies an operation. IDs are totally ordered by (Clock, Replica).
type OpID struct {
	Clock   uint64 `msgpack:"c"`
	Replica string `msgpack:"r"`
}

// Compare orders ids by clock, then replica.
func (id OpID) Compare(other OpID) int {
	if c := cmp.Compare(id.Clock, other.Clock); c != 0 {
		return c
	}
	return strings.Compare(id.Replica, other.Replica)
}

// IsZero reports whether id is the zero id.
func (id OpID) IsZero() bool {
	return id.Clock == 0 && id.Replica == ""
}

// Offset returns the id of the i-th unit of a text insert run starting at id.
func (id OpID) Offset(i int) OpID {
	return OpID{Clock: id.Clock + uint64(i), Replica: id.Replica}
}

func (id OpID) String() string {
	return fmt.Sprintf("%d@%s", id.Clock, id.Replica)
}

// ContainerID identifies a map or text container.
// Root containers are named; nested containers are identified by the op
// that created them.
type ContainerID struct {
	Root string `msgpack:"n"`
	Op   OpID   `msgpack:"o"`
}

// Root returns the id of a named root map.
func Root(name string) ContainerID {
	return ContainerID{Root: name}
}

// IsRoot reports whether the container is a named root.
func (c ContainerID) IsRoot() bool {
	return c.Root != ""
}

func (c ContainerID) String() string {
	if c.IsRoot() {
		return c.Root
	}
	return "#" + c.Op.String()
}

// OpKind tags an operation.
type OpKind uint8

const (
	OpMapSet OpKind = iota + 1
	OpMapDelete
	OpTextInsert
	OpTextDelete
	OpTextFormat
)

func (k OpKind) String() string {
	switch k {
	case OpMapSet:
		return "map_set"
	case OpMapDelete:
		return "map_delete"
	case OpTextInsert:
		return "text_insert"
	case OpTextDelete:
		return "text_delete"
	case OpTextFormat:
		return "text_format"
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// ChildKind tags the nested container a map entry holds.
type ChildKind uint8

const (
	ChildNone ChildKind = iota
	ChildMap
	ChildText
)

// Span is a run of consecutive text unit ids from one insert run.
type Span struct {
	Start OpID `msgpack:"s"`
	Len   int  `msgpack:"l"`
}

// Op is one replicated mutation.
//
// MapSet writes Value, or creates a nested container when Child is set.
// TextInsert places Text after the unit Origin (zero Origin means the start).
// TextDelete tombstones the units in Spans. TextFormat applies Attrs to them.
type Op struct {
	ID     OpID
	Kind   OpKind
	Target ContainerID
	Key    string
	Value  ir.Value
	Child  ChildKind
	Origin OpID
	Text   string
	Spans  []Span
	Attrs  ir.Object
}

// lastClock returns the highest clock value the op occupies.
func (op Op) lastClock() uint64 {
	if op.Kind == OpTextInsert {
		if n := ir.UTF16Len(op.Text); n > 1 {
			return op.ID.Clock + uint64(n) - 1
		}
	}
	return op.ID.Clock
}

// compareOps orders ops by id.
func compareOps(a, b Op) int {
	return a.ID.Compare(b.ID)
}
