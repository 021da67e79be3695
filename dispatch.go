package bitwalk

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

type route struct {
	version uint64
	typ     reflect.Type
	decode  func(data []byte) error
}

// Dispatcher routes versioned messages to the handler registered for the
// type whose structural hash heads the message.
type Dispatcher struct {
	c      *Codec
	routes []route
}

// NewDispatcher builds a Dispatcher. The mode must include Versioned.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	c, err := NewCodec(opts...)
	if err != nil {
		return nil, err
	}
	if !c.Mode().Has(Versioned) {
		return nil, fmt.Errorf("%w: dispatch needs Versioned", ErrInvalidMode)
	}
	return &Dispatcher{c: c}, nil
}

// Handle registers fn for messages carrying T. Earlier registrations win
// when two types share a hash.
func Handle[T any](d *Dispatcher, fn func(*T) error) {
	t := reflect.TypeFor[T]()
	d.routes = append(d.routes, route{
		version: d.c.Version(t),
		typ:     t,
		decode: func(data []byte) error {
			var v T
			if err := d.c.Unmarshal(data, &v); err != nil {
				return err
			}
			return fn(&v)
		},
	})
}

// Dispatch decodes data into the first registered type whose hash matches
// and calls its handler.
func (d *Dispatcher) Dispatch(data []byte) error {
	version, err := d.c.PeekVersion(data)
	if err != nil {
		return err
	}
	for _, r := range d.routes {
		if r.version == version {
			d.c.log.Debug("bitwalk: dispatch", zap.Stringer("type", r.typ), zap.Uint64("version", version))
			return r.decode(data)
		}
	}
	return fmt.Errorf("%w: %#x", ErrNoMatch, version)
}
