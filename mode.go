package bitwalk

import (
	"encoding/binary"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects wire options. Flags combine with |. The zero Mode writes
// host byte order with no version hash and no checksum.
type Mode uint8

const (
	BigEndian Mode = 1 << iota
	LittleEndian
	// Versioned prefixes the payload with the structural hash of the
	// top-level type and verifies it on decode.
	Versioned
	// Checksummed adds a CRC-32 of the payload, patched in after the walk.
	Checksummed
	// SkipSafety disables the length plausibility checks and the aligned
	// copy of unaligned input.
	SkipSafety
)

var hostBigEndian = binary.NativeEndian.Uint16([]byte{0, 1}) == 1

func (m Mode) Validate() error {
	if m&BigEndian != 0 && m&LittleEndian != 0 {
		return ErrInvalidMode
	}
	if m >= SkipSafety<<1 {
		return fmt.Errorf("%w: unknown flags %#x", ErrInvalidMode, uint8(m))
	}
	return nil
}

// Order returns the wire byte order.
func (m Mode) Order() binary.ByteOrder {
	switch {
	case m&BigEndian != 0:
		return binary.BigEndian
	case m&LittleEndian != 0:
		return binary.LittleEndian
	default:
		return binary.NativeEndian
	}
}

// Native reports whether the wire byte order matches the host.
func (m Mode) Native() bool {
	switch {
	case m&BigEndian != 0:
		return hostBigEndian
	case m&LittleEndian != 0:
		return !hostBigEndian
	default:
		return true
	}
}

func (m Mode) Has(flag Mode) bool { return m&flag == flag }

func (m Mode) String() string {
	var parts []string
	switch {
	case m&BigEndian != 0 && m&LittleEndian != 0:
		parts = append(parts, "big|little")
	case m&BigEndian != 0:
		parts = append(parts, "big")
	case m&LittleEndian != 0:
		parts = append(parts, "little")
	default:
		parts = append(parts, "native")
	}
	if m&Versioned != 0 {
		parts = append(parts, "versioned")
	}
	if m&Checksummed != 0 {
		parts = append(parts, "checksummed")
	}
	if m&SkipSafety != 0 {
		parts = append(parts, "skip-safety")
	}
	return strings.Join(parts, "+")
}

// modeProfile is the YAML form of a Mode:
//
//	endian: big
//	version: true
//	integrity: true
//	skip_safety: false
type modeProfile struct {
	Endian     string `yaml:"endian,omitempty"`
	Version    bool   `yaml:"version"`
	Integrity  bool   `yaml:"integrity"`
	SkipSafety bool   `yaml:"skip_safety"`
}

func (m Mode) MarshalYAML() (any, error) {
	p := modeProfile{
		Endian:     "native",
		Version:    m&Versioned != 0,
		Integrity:  m&Checksummed != 0,
		SkipSafety: m&SkipSafety != 0,
	}
	switch {
	case m&BigEndian != 0 && m&LittleEndian != 0:
		return nil, ErrInvalidMode
	case m&BigEndian != 0:
		p.Endian = "big"
	case m&LittleEndian != 0:
		p.Endian = "little"
	}
	return p, nil
}

func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	var p modeProfile
	if err := node.Decode(&p); err != nil {
		return err
	}
	var out Mode
	switch strings.ToLower(p.Endian) {
	case "", "native":
	case "big":
		out |= BigEndian
	case "little":
		out |= LittleEndian
	default:
		return fmt.Errorf("%w: endian %q", ErrInvalidMode, p.Endian)
	}
	if p.Version {
		out |= Versioned
	}
	if p.Integrity {
		out |= Checksummed
	}
	if p.SkipSafety {
		out |= SkipSafety
	}
	*m = out
	return nil
}

// ParseMode reads a YAML mode profile.
func ParseMode(data []byte) (Mode, error) {
	var m Mode
	if err := yaml.Unmarshal(data, &m); err != nil {
		return 0, err
	}
	return m, nil
}
