package tailmerge

import (
	"errors"
	"io/fs"
	"os"
)

// Process exit codes. Every I/O failure is fatal for the whole run; no
// source is skipped or retried.
const (
	ExitUsage = 1 // no input files given
	ExitOpen  = 2 // an input file could not be opened
	ExitRead  = 3 // reading from an open input failed
	ExitWrite = 4 // writing to stdout failed
)

// OpError is a fatal I/O failure tagged with the action that caused it and
// the exit code it maps to. The message form is "<Action> <path>: <error>".
type OpError struct {
	Action string
	Path   string
	Err    error
	Code   int
}

func (e *OpError) Error() string { return e.Action + " " + e.Path + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

// OpenError reports that an input file could not be opened.
func OpenError(path string, err error) *OpError {
	return &OpError{Action: "Cannot open", Path: path, Err: sysErr(err), Code: ExitOpen}
}

// ReadError reports a failed read from an already-open source.
func ReadError(path string, err error) *OpError {
	return &OpError{Action: "Error reading from", Path: path, Err: sysErr(err), Code: ExitRead}
}

// WriteError reports a failed write of merged output. Short writes are
// retried by the batcher and never reach this.
func WriteError(err error) *OpError {
	return &OpError{Action: "Error writing to", Path: "stdout", Err: sysErr(err), Code: ExitWrite}
}

// sysErr strips the os wrapper types so the message carries the bare OS
// error text instead of repeating the path.
func sysErr(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var se *os.SyscallError
	if errors.As(err, &se) {
		return se.Err
	}
	return err
}
