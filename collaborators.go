package bitwalk

import "github.com/rawbytedev/bitwalk/internal/common"

// Containers outside this module opt into the wire format by implementing
// one of these on their pointer type. swiss.Map, swiss.Set, swiss.FlatMap
// and swiss.FlatSet implement Associative.
type (
	Sequence    = common.Sequence
	Associative = common.Associative
	Union       = common.Union
	FieldLister = common.FieldLister
)
