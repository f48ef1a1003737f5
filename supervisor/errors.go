package supervisor

import "fmt"

// ErrorKind is the coarse classification tag the supervisor attaches to a
// failed file operation. The vocabulary is fixed by the protocol; kinds a
// client does not recognize must be treated as ErrorKindGeneric.
type ErrorKind string

const (
	ErrorKindNotFound          ErrorKind = "not-found"
	ErrorKindPermissionDenied  ErrorKind = "permission-denied"
	ErrorKindIsADirectory      ErrorKind = "is-a-directory"
	ErrorKindNotADirectory     ErrorKind = "not-a-directory"
	ErrorKindFileExists        ErrorKind = "file-exists"
	ErrorKindDirectoryNotEmpty ErrorKind = "directory-not-empty"
	// ErrorKindLookup reports a user or group name that does not resolve on
	// the remote system. No part of the operation is applied.
	ErrorKindLookup  ErrorKind = "lookup"
	ErrorKindGeneric ErrorKind = "generic"
)

// Error is a structured failure reported by the supervisor for a file
// operation that reached the remote endpoint.
type Error struct {
	Kind    ErrorKind
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Path)
}

// ConnectionError reports that the supervisor endpoint could not be reached
// at all. It is distinct from Error: nothing is known about the state of the
// remote filesystem, so callers must never reinterpret it as a file error.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach supervisor at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
