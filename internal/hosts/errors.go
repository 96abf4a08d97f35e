package hosts

import "errors"

// Sentinel errors for merge and target file operations.
var (
	// ErrUnsupportedEncoding is returned when the hosts file cannot be decoded
	// by any of the configured encodings.
	ErrUnsupportedEncoding = errors.New("hosts: unsupported encoding")

	// ErrEmptyRemoteContent is returned when the fetched document carries no
	// usable lines. An empty remote is a failure, never a valid update.
	ErrEmptyRemoteContent = errors.New("hosts: empty remote content")

	// ErrWriteFailure is returned when the target file could not be overwritten.
	ErrWriteFailure = errors.New("hosts: write failure")
)
