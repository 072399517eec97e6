package engine

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// DecodeFailures lists every update in an ApplyUpdates batch that could
// not be decoded. It is carried as the cause of an UPDATE_DECODING_FAILED
// error so callers can drop or re-request exactly the broken payloads.
type DecodeFailures struct {
	// Indexes are positions in the input slice, ascending.
	Indexes []int

	errs *multierror.Error
}

// add records the failure of the update at index i.
func (f *DecodeFailures) add(i int, err error) {
	f.Indexes = append(f.Indexes, i)
	f.errs = multierror.Append(f.errs, fmt.Errorf("update %d: %w", i, err))
	f.errs.ErrorFormat = decodeFailureFormat
}

// empty reports whether no failures were recorded.
func (f *DecodeFailures) empty() bool {
	return len(f.Indexes) == 0
}

// Error implements the error interface.
func (f *DecodeFailures) Error() string {
	if f.errs == nil {
		return "no decode failures"
	}
	return f.errs.Error()
}

// decodeFailureFormat renders every failure on one line.
func decodeFailureFormat(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d update(s) failed to decode: %s", len(msgs), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual decode errors to errors.Is and errors.As.
func (f *DecodeFailures) Unwrap() []error {
	if f.errs == nil {
		return nil
	}
	return f.errs.WrappedErrors()
}
