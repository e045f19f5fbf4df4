package unpack

import "errors"

// Sentinel errors for extraction operations.
var (
	// ErrUnknownFormat is returned when a format name cannot be parsed.
	ErrUnknownFormat = errors.New("unpack: unknown package format")

	// errTraversalAfterGuard reports a parent-directory component surviving
	// the unpack guard. It indicates a bug, not bad archive input.
	errTraversalAfterGuard = errors.New("unpack: traversal component after unpack guard")
)
