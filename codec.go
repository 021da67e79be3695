// Package bitwalk converts Go values to a flat binary form and back.
//
// The wire layout is
//
//	[version hash u64, if Versioned][crc32 u32, if Checksummed][payload]
//
// The payload is a depth-first walk of the value. Scalars sit at their
// natural alignment measured from the start of the buffer, in the byte
// order selected by the Mode. Variable-length shapes carry a u64 count,
// optional values a presence byte, unions a u32 index. Associative
// containers are written as their entries and rebuilt by insertion, so
// the decoded container never depends on the encoder's table layout.
package bitwalk

import (
	"hash/crc32"
	"reflect"

	"go.uber.org/zap"

	"github.com/rawbytedev/bitwalk/pkg/bytebuf"
	"github.com/rawbytedev/bitwalk/pkg/swiss"
	"github.com/rawbytedev/bitwalk/pkg/typehash"
)

type Options struct {
	Mode Mode
	// UnsafeStrings makes decoded strings share memory with the input.
	// The caller must keep the input alive and unmodified.
	UnsafeStrings bool
	// UnsafePrimitives makes decoded numeric slices share memory with the
	// input when the wire order is native and the data is aligned.
	UnsafePrimitives bool
	Logger           *zap.Logger
}

type Option func(*Options)

func WithMode(m Mode) Option {
	return func(o *Options) { o.Mode = m }
}

func WithUnsafeStrings() Option {
	return func(o *Options) { o.UnsafeStrings = true }
}

func WithUnsafePrimitives() Option {
	return func(o *Options) { o.UnsafePrimitives = true }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Codec encodes and decodes values under one set of Options, caching the
// walk plan and structural hash of every type it sees. A Codec is not
// safe for concurrent use.
type Codec struct {
	opts     Options
	plans    *swiss.Map[reflect.Type, *typeInfo]
	versions *swiss.Map[reflect.Type, uint64]
	log      *zap.Logger
	sizeHint int
}

func NewCodec(opts ...Option) (*Codec, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Mode.Validate(); err != nil {
		return nil, err
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Codec{
		opts:     o,
		plans:    swiss.NewMap[reflect.Type, *typeInfo](),
		versions: swiss.NewMap[reflect.Type, uint64](),
		log:      o.Logger,
		sizeHint: 64,
	}, nil
}

func (c *Codec) Mode() Mode { return c.opts.Mode }

// Version returns the structural hash written for values of type t.
func (c *Codec) Version(t reflect.Type) uint64 {
	if v, ok := c.versions.Get(t); ok {
		return v
	}
	v := typehash.Of(t)
	c.versions.Put(t, v)
	return v
}

// Marshal encodes v. A pointer is followed once, so Marshal(x) and
// Marshal(&x) produce the same bytes.
func (c *Codec) Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, &Error{Op: "encode", Phase: PhasePayload, Err: ErrUnsupported}
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, &Error{Op: "encode", Phase: PhasePayload, Type: rv.Type(), Err: ErrUnsupported}
		}
		rv = rv.Elem()
	}
	if !rv.CanAddr() {
		tmp := reflect.New(rv.Type()).Elem()
		tmp.Set(rv)
		rv = tmp
	}
	t := rv.Type()
	mode := c.opts.Mode
	buf := bytebuf.NewBuffer(c.sizeHint)
	order := mode.Order()

	if mode.Has(Versioned) {
		buf.PutUint64(order, c.Version(t))
	}
	crcAt := -1
	if mode.Has(Checksummed) {
		crcAt = buf.Reserve(4, 4)
	}

	e := encoder{c: c, buf: buf, order: order, native: mode.Native()}
	if err := e.value(rv, c.info(t)); err != nil {
		return nil, &Error{Op: "encode", Phase: PhasePayload, Offset: buf.Len(), Type: t, Err: err}
	}

	if crcAt >= 0 {
		sum := crc32.ChecksumIEEE(buf.From(crcAt + 4))
		if err := buf.PatchUint32(crcAt, order, sum); err != nil {
			return nil, &Error{Op: "encode", Phase: PhaseIntegrity, Offset: crcAt, Type: t, Err: err}
		}
	}
	out := buf.Bytes()
	if len(out) > c.sizeHint {
		c.sizeHint = len(out)
	}
	c.log.Debug("bitwalk: encoded", zap.Stringer("type", t), zap.Int("bytes", len(out)), zap.Stringer("mode", mode))
	return out, nil
}

// Unmarshal decodes data into the value out points to. On failure out is
// left untouched.
func (c *Codec) Unmarshal(data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Error{Op: "decode", Phase: PhasePayload, Err: ErrNotPointer}
	}
	t := rv.Type().Elem()
	mode := c.opts.Mode
	order := mode.Order()
	if !mode.Has(SkipSafety) {
		data = bytebuf.Aligned(data)
	}
	r := bytebuf.NewReader(data)

	if mode.Has(Versioned) {
		got, err := r.Uint64(order)
		if err != nil {
			return &Error{Op: "decode", Phase: PhaseVersion, Offset: r.Offset(), Type: t, Err: err}
		}
		if want := c.Version(t); got != want {
			c.log.Debug("bitwalk: version mismatch", zap.Stringer("type", t), zap.Uint64("got", got), zap.Uint64("want", want))
			return &Error{Op: "decode", Phase: PhaseVersion, Offset: 0, Type: t, Err: ErrVersionMismatch}
		}
	}
	if mode.Has(Checksummed) {
		stored, err := r.Uint32(order)
		if err != nil {
			return &Error{Op: "decode", Phase: PhaseIntegrity, Offset: r.Offset(), Type: t, Err: err}
		}
		if sum := crc32.ChecksumIEEE(data[r.Offset():]); sum != stored {
			c.log.Debug("bitwalk: checksum mismatch", zap.Stringer("type", t), zap.Uint32("stored", stored), zap.Uint32("computed", sum))
			return &Error{Op: "decode", Phase: PhaseIntegrity, Offset: r.Offset() - 4, Type: t, Err: ErrIntegrityMismatch}
		}
	}

	d := decoder{
		c:      c,
		r:      r,
		order:  order,
		native: mode.Native(),
		safe:   !mode.Has(SkipSafety),
	}
	tmp := reflect.New(t).Elem()
	if err := d.value(tmp, c.info(t)); err != nil {
		return &Error{Op: "decode", Phase: PhasePayload, Offset: r.Offset(), Type: t, Err: err}
	}
	if r.Remaining() != 0 {
		return &Error{Op: "decode", Phase: PhasePayload, Offset: r.Offset(), Type: t, Err: ErrTrailingBytes}
	}
	rv.Elem().Set(tmp)
	return nil
}

// PeekVersion returns the version hash at the head of data without
// decoding the payload.
func (c *Codec) PeekVersion(data []byte) (uint64, error) {
	if !c.opts.Mode.Has(Versioned) {
		return 0, ErrInvalidMode
	}
	if len(data) < 8 {
		return 0, &Error{Op: "decode", Phase: PhaseVersion, Err: ErrTruncated}
	}
	return c.opts.Mode.Order().Uint64(data[:8]), nil
}

// Marshal encodes v with a one-shot Codec.
func Marshal(v any, mode Mode) ([]byte, error) {
	c, err := NewCodec(WithMode(mode))
	if err != nil {
		return nil, err
	}
	return c.Marshal(v)
}

// Unmarshal decodes data into out with a one-shot Codec.
func Unmarshal(data []byte, out any, mode Mode) error {
	c, err := NewCodec(WithMode(mode))
	if err != nil {
		return err
	}
	return c.Unmarshal(data, out)
}
