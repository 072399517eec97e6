// Package schema validates block records against a CUE schema.
//
// A schema source defines #Block, the shape every block must satisfy, and an
// optional types struct holding per-type constraints keyed by block type.
// The embedded default schema is used when no other source is given.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/blockdoc/internal/ir"
)

//go:embed default.cue
var defaultSource []byte

// Schema is a compiled block schema. It is safe for concurrent use.
type Schema struct {
	mu    sync.Mutex // cue.Context is not safe for concurrent use
	ctx   *cue.Context
	block cue.Value
	types cue.Value
}

// Default compiles the embedded schema.
func Default() (*Schema, error) {
	return Compile("default.cue", defaultSource)
}

// Load compiles the schema file at path.
func Load(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(path, src)
}

// Compile compiles CUE source. name is used in error positions.
func Compile(name string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	block := v.LookupPath(cue.ParsePath("#Block"))
	if !block.Exists() {
		return nil, &CompileError{Field: "#Block", Message: "definition is required", Pos: v.Pos()}
	}
	if err := block.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return &Schema{
		ctx:   ctx,
		block: block,
		types: v.LookupPath(cue.ParsePath("types")),
	}, nil
}

// Validate checks a block's structural fields and attributes. Text content
// is not validated. Failures are VALIDATION_ERROR naming the block.
func (s *Schema) Validate(b ir.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := map[string]any{
		"id":         b.ID,
		"type":       b.Type,
		"attributes": ir.ToAny(attributesOrEmpty(b.Attributes)),
	}
	if b.ParentID != "" {
		record["parentId"] = b.ParentID
	}
	if b.PrevID != "" {
		record["prevId"] = b.PrevID
	}

	v := s.block.Unify(s.ctx.Encode(record))
	if s.types.Exists() && b.Type != "" {
		if t := s.types.LookupPath(cue.MakePath(cue.Str(b.Type))); t.Exists() {
			v = v.Unify(t)
		}
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.ValidationError(b.ID, firstMessage(err))
	}
	return nil
}

func attributesOrEmpty(attrs ir.Object) ir.Object {
	if attrs == nil {
		return ir.Object{}
	}
	return attrs
}

// CompileError is a schema compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// firstMessage returns the first CUE error message, which names the
// offending field path.
func firstMessage(err error) string {
	if errs := errors.Errors(err); len(errs) > 0 {
		return errs[0].Error()
	}
	return err.Error()
}
