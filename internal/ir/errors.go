package ir

import (
	"errors"
	"fmt"
)

// Error is the typed error returned by every document operation.
//
// Every failure aborts the enclosing batch wholesale, so an Error always
// describes a rejected call, never a partially applied one.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// BlockID identifies the affected block, if any.
	BlockID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes document errors.
type ErrorKind string

const (
	// KindInvalidOperation marks a malformed action or delta op.
	KindInvalidOperation ErrorKind = "INVALID_OPERATION"

	// KindDecodingError marks malformed input that could not be decoded.
	KindDecodingError ErrorKind = "DECODING_ERROR"

	// KindUpdateDecodingFailed marks a binary update that could not be decoded.
	KindUpdateDecodingFailed ErrorKind = "UPDATE_DECODING_FAILED"

	// KindEncodingError marks state that could not be serialized.
	KindEncodingError ErrorKind = "ENCODING_ERROR"

	// KindValidationError marks a block rejected by the block-type schema.
	KindValidationError ErrorKind = "VALIDATION_ERROR"

	// KindStateError marks an expected sub-structure missing from the document.
	KindStateError ErrorKind = "STATE_ERROR"

	// KindBlockNotFound marks a reference to a block that does not exist.
	KindBlockNotFound ErrorKind = "BLOCK_NOT_FOUND"

	// KindMergeError marks a failure compacting update logs.
	KindMergeError ErrorKind = "MERGE_ERROR"

	// KindStateEncodingFailed marks a block whose text could not be serialized
	// while extracting document state.
	KindStateEncodingFailed ErrorKind = "STATE_ENCODING_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.BlockID != "" {
		msg = fmt.Sprintf("%s (block=%s)", msg, e.BlockID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsBlockNotFound reports whether err is a BLOCK_NOT_FOUND error.
func IsBlockNotFound(err error) bool {
	return IsKind(err, KindBlockNotFound)
}

// IsInvalidOperation reports whether err is an INVALID_OPERATION error.
func IsInvalidOperation(err error) bool {
	return IsKind(err, KindInvalidOperation)
}

// InvalidOperation creates an INVALID_OPERATION error.
func InvalidOperation(msg string) *Error {
	return &Error{Kind: KindInvalidOperation, Message: msg}
}

// BlockNotFound creates a BLOCK_NOT_FOUND error for id.
func BlockNotFound(id string) *Error {
	return &Error{Kind: KindBlockNotFound, Message: "block not found", BlockID: id}
}

// StateError creates a STATE_ERROR error.
func StateError(msg string) *Error {
	return &Error{Kind: KindStateError, Message: msg}
}

// ValidationError creates a VALIDATION_ERROR error for a block.
func ValidationError(blockID, msg string) *Error {
	return &Error{Kind: KindValidationError, Message: msg, BlockID: blockID}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithBlock returns a copy of e scoped to a block.
func (e *Error) WithBlock(id string) *Error {
	cp := *e
	cp.BlockID = id
	return &cp
}
