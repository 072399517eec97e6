package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// OpKind tags a rich-text delta operation.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpRetain OpKind = "retain"
	OpDelete OpKind = "delete"
)

// DeltaOp is one rich-text edit operation.
//
// Insert carries Text; Retain and Delete carry Count in UTF-16 code units.
// Attributes apply to Insert and Retain; a Null attribute value removes that
// format from the retained range.
type DeltaOp struct {
	Kind       OpKind
	Text       string
	Count      int
	Attributes Object
}

// Insert builds an insert operation.
func Insert(text string, attrs Object) DeltaOp {
	return DeltaOp{Kind: OpInsert, Text: text, Attributes: attrs}
}

// Retain builds a retain operation.
func Retain(n int, attrs Object) DeltaOp {
	return DeltaOp{Kind: OpRetain, Count: n, Attributes: attrs}
}

// Delete builds a delete operation.
func Delete(n int) DeltaOp {
	return DeltaOp{Kind: OpDelete, Count: n}
}

// Len returns the UTF-16 length the operation covers.
func (op DeltaOp) Len() int {
	if op.Kind == OpInsert {
		return UTF16Len(op.Text)
	}
	return op.Count
}

// MarshalJSON writes the Quill-style object form:
// {"insert":"..."}, {"retain":n}, or {"delete":n}, with optional "attributes".
func (op DeltaOp) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	switch op.Kind {
	case OpInsert:
		text, err := json.Marshal(op.Text)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"insert":`)
		buf.Write(text)
	case OpRetain:
		buf.WriteString(`"retain":`)
		buf.WriteString(strconv.Itoa(op.Count))
	case OpDelete:
		buf.WriteString(`"delete":`)
		buf.WriteString(strconv.Itoa(op.Count))
	default:
		return nil, fmt.Errorf("unknown delta op kind %q", op.Kind)
	}
	if op.Kind != OpDelete && len(op.Attributes) > 0 {
		attrs, err := op.Attributes.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"attributes":`)
		buf.Write(attrs)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses one operation. Malformed operations produce an
// INVALID_OPERATION error: no insert/retain/delete key, a non-string insert,
// or a retain/delete that is not a non-negative integer.
// When several keys are present, insert wins over retain, and retain over delete.
func (op *DeltaOp) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return InvalidOperation("delta operation must be an object")
	}

	var attrs Object
	if rawAttrs, ok := raw["attributes"]; ok && !bytes.Equal(bytes.TrimSpace(rawAttrs), []byte("null")) {
		if err := json.Unmarshal(rawAttrs, &attrs); err != nil {
			return InvalidOperation(fmt.Sprintf("invalid delta attributes: %v", err))
		}
	}

	if rawInsert, ok := raw[string(OpInsert)]; ok {
		var text string
		if err := json.Unmarshal(rawInsert, &text); err != nil {
			return InvalidOperation("insert value must be a string")
		}
		*op = Insert(text, attrs)
		return nil
	}
	if rawRetain, ok := raw[string(OpRetain)]; ok {
		n, err := parseCount(rawRetain)
		if err != nil {
			return InvalidOperation("retain value must be a number")
		}
		*op = Retain(n, attrs)
		return nil
	}
	if rawDelete, ok := raw[string(OpDelete)]; ok {
		n, err := parseCount(rawDelete)
		if err != nil {
			return InvalidOperation("delete value must be a number")
		}
		*op = Delete(n)
		return nil
	}
	return InvalidOperation("invalid delta operation")
}

func parseCount(data []byte) (int, error) {
	var n uint32
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Delta is an ordered list of rich-text operations.
// A nil Delta means "no text"; an empty non-nil Delta is an empty text.
type Delta []DeltaOp

// UnmarshalJSON parses a JSON array of operations into a non-nil Delta.
// A JSON null leaves the Delta untouched.
func (d *Delta) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return InvalidOperation("delta must be an array of operations")
	}
	out := make(Delta, 0, len(raw))
	for _, r := range raw {
		var op DeltaOp
		if err := op.UnmarshalJSON(r); err != nil {
			return err
		}
		out = append(out, op)
	}
	*d = out
	return nil
}

// ParseDelta decodes a delta from its JSON text.
func ParseDelta(text string) (Delta, error) {
	var d Delta
	if err := d.UnmarshalJSON([]byte(text)); err != nil {
		return nil, err
	}
	return d, nil
}

// String returns the JSON text of the delta. A nil delta renders as "[]".
func (d Delta) String() string {
	if d == nil {
		return "[]"
	}
	data, err := json.Marshal([]DeltaOp(d))
	if err != nil {
		return "[]"
	}
	return string(data)
}

// PlainText concatenates the inserted text of the delta.
func (d Delta) PlainText() string {
	var buf bytes.Buffer
	for _, op := range d {
		if op.Kind == OpInsert {
			buf.WriteString(op.Text)
		}
	}
	return buf.String()
}
