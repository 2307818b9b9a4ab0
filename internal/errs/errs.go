// Package errs defines the error taxonomy shared by every container- and
// graph-parsing package. Each sentinel corresponds to a fatal/non-fatal
// classification the extraction driver uses to decide whether a single
// part fails or the whole run aborts.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors classified by the extraction driver's propagation
// policy. Use errors.Is against these, never string comparison.
var (
	// Truncated means unexpected end of stream while decoding a
	// primitive, a tag record, or a chunk. Fatal for the containing
	// part; fatal for graph construction if hit while parsing the
	// layout descriptor itself.
	Truncated = errors.New("truncated stream")

	// FormatMismatch means a magic, container length, or type-code
	// violation. Same fatality policy as Truncated.
	FormatMismatch = errors.New("format mismatch")

	// BundleUnavailable means the part's CAS identifier does not
	// resolve to a file present on disk in either layer. (A bundle
	// whose SB byte range lies outside the available SB file is not
	// reported through this error; it is kept with its Unavailable
	// flag set.) Non-fatal: logged at warning level, the part is
	// skipped.
	BundleUnavailable = errors.New("bundle unavailable")

	// DecompressorError means the external decompression library (or
	// its substitute) returned an error for a chunk. Fatal for the
	// containing part.
	DecompressorError = errors.New("decompressor error")
)

// UnknownCompressionError is fatal for the containing part. It is a
// distinct type rather than a sentinel so the offending code survives
// into diagnostics.
type UnknownCompressionError struct {
	Code uint16
}

func (e *UnknownCompressionError) Error() string {
	return fmt.Sprintf("unknown compression code 0x%04x", e.Code)
}

// UnknownTypeCodeError is fatal for the containing container.
type UnknownTypeCodeError struct {
	Code byte
}

func (e *UnknownTypeCodeError) Error() string {
	return fmt.Sprintf("unknown tag stream type code 0x%02x", e.Code)
}

// IoError wraps an underlying I/O failure. Fatal for the containing
// part, non-fatal for the overall run.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// WrapIO is a convenience constructor for IoError.
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Op: op, Err: err}
}
