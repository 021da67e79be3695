package bitwalk

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestModeValidate(t *testing.T) {
	for _, m := range allModes {
		assert.NoError(t, m.Validate(), m.String())
	}
	assert.ErrorIs(t, (BigEndian | LittleEndian).Validate(), ErrInvalidMode)
	assert.ErrorIs(t, Mode(0x40).Validate(), ErrInvalidMode)
}

func TestModeOrder(t *testing.T) {
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), BigEndian.Order())
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), LittleEndian.Order())
	assert.Equal(t, binary.ByteOrder(binary.NativeEndian), Mode(0).Order())
	assert.True(t, Mode(0).Native())
	assert.NotEqual(t, BigEndian.Native(), LittleEndian.Native())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "native", Mode(0).String())
	assert.Equal(t, "big+versioned+checksummed", (BigEndian | Versioned | Checksummed).String())
	assert.Equal(t, "little+skip-safety", (LittleEndian | SkipSafety).String())
}

func TestModeYAML(t *testing.T) {
	m, err := ParseMode([]byte("endian: big\nversion: true\nintegrity: true\n"))
	require.NoError(t, err)
	assert.Equal(t, BigEndian|Versioned|Checksummed, m)

	m, err = ParseMode([]byte("skip_safety: true\n"))
	require.NoError(t, err)
	assert.Equal(t, SkipSafety, m)

	_, err = ParseMode([]byte("endian: middle\n"))
	assert.ErrorIs(t, err, ErrInvalidMode)

	type profile struct {
		Name string `yaml:"name"`
		Mode Mode   `yaml:"mode"`
	}
	for _, mode := range allModes {
		out, err := yaml.Marshal(profile{Name: "p", Mode: mode})
		require.NoError(t, err)
		var back profile
		require.NoError(t, yaml.Unmarshal(out, &back))
		assert.Equal(t, mode, back.Mode, string(out))
	}

	_, err = yaml.Marshal(profile{Mode: BigEndian | LittleEndian})
	assert.Error(t, err)
}
