package persistence

import (
	"errors"
	"fmt"
)

const (
	// MagicIndex identifies serialized ANN index blobs (ASCII: "SVIX").
	MagicIndex = 0x53564958
	// MagicReducer identifies serialized reducer models (ASCII: "SVLS").
	MagicReducer = 0x53564c53
	// MagicScoring identifies serialized scoring models (ASCII: "SVSC").
	MagicScoring = 0x53565343

	// Version is the current artifact format version (v1.0.0).
	Version = 0x00010000
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
)

// ErrCorrupt indicates a structurally invalid artifact.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("corrupt artifact: %s", e.Reason)
}
