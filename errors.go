package bitwalk

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rawbytedev/bitwalk/internal/common"
	"github.com/rawbytedev/bitwalk/pkg/bytebuf"
	"github.com/rawbytedev/bitwalk/pkg/swiss"
)

var (
	// ErrTruncated reports a read past the end of the input.
	ErrTruncated         = bytebuf.ErrOutOfBounds
	ErrIntegrityMismatch = errors.New("bitwalk: integrity checksum mismatch")
	ErrVersionMismatch   = errors.New("bitwalk: structural version mismatch")
	ErrKeyNotFound       = swiss.ErrKeyNotFound
	ErrAllocation        = swiss.ErrAllocation

	ErrUnsupported    = errors.New("bitwalk: unsupported type")
	ErrNotPointer     = errors.New("bitwalk: decode target must be a non-nil pointer")
	ErrInvalidMode    = errors.New("bitwalk: invalid mode")
	ErrTrailingBytes  = errors.New("bitwalk: trailing bytes after payload")
	ErrDuplicateKey   = errors.New("bitwalk: duplicate key in associative payload")
	ErrLengthOverflow = errors.New("bitwalk: length exceeds remaining input")
	ErrMalformed      = errors.New("bitwalk: malformed payload")
	ErrBadUnionIndex  = errors.New("bitwalk: union index out of range")
	ErrNoMatch        = errors.New("bitwalk: no registered type matches the version hash")
	ErrUnordered      = errors.New("bitwalk: values have no defined order")
	ErrUnknownField   = common.ErrUnknownField
)

// Phase names the step of the walk an Error occurred in.
type Phase string

const (
	PhaseVersion   Phase = "version"
	PhaseIntegrity Phase = "integrity"
	PhasePayload   Phase = "payload"
)

// Error carries the context of a failed encode or decode.
type Error struct {
	Op     string
	Phase  Phase
	Offset int
	Type   reflect.Type
	Err    error
}

func (e *Error) Error() string {
	if e.Type != nil {
		return fmt.Sprintf("%s %s at offset %d (%s): %v", e.Op, e.Phase, e.Offset, e.Type, e.Err)
	}
	return fmt.Sprintf("%s %s at offset %d: %v", e.Op, e.Phase, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func unsupported(t reflect.Type) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, t)
}
