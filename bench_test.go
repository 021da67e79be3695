package bitwalk

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

type benchRecord struct {
	Val      []string  `yaml:"val" cbor:"1,keyasint"`
	Mod      []int8    `yaml:"mod" cbor:"2,keyasint"`
	Integers []int16   `yaml:"integers" cbor:"3,keyasint"`
	Float3   []float32 `yaml:"float3" cbor:"4,keyasint"`
	Float6   []float64 `yaml:"float6" cbor:"5,keyasint"`
	ID       uint64    `yaml:"id" cbor:"6,keyasint"`
}

func newBenchRecord() benchRecord {
	return benchRecord{
		Val:      []string{"azerty", "hello", "world", "random"},
		Mod:      []int8{12, 10, 13, 1},
		Integers: []int16{100, 250, 300},
		Float3:   []float32{12.13, 16.23, 75.1},
		Float6:   []float64{100.5, 165.63, 153.5},
		ID:       42,
	}
}

func BenchmarkMarshalScalar(b *testing.B) {
	type one struct{ Int int8 }
	c, _ := NewCodec()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = c.Marshal(one{Int: 1})
	}
}

func BenchmarkMarshal(b *testing.B) {
	for _, mode := range []Mode{0, BigEndian, Versioned | Checksummed} {
		b.Run(mode.String(), func(b *testing.B) {
			z := newBenchRecord()
			c, _ := NewCodec(WithMode(mode))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = c.Marshal(&z)
			}
		})
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	for _, zeroCopy := range []bool{false, true} {
		name := "safe"
		opts := []Option{WithMode(Versioned | Checksummed)}
		if zeroCopy {
			name = "unsafe"
			opts = append(opts, WithUnsafeStrings(), WithUnsafePrimitives())
		}
		b.Run(name, func(b *testing.B) {
			c, _ := NewCodec(opts...)
			data, _ := c.Marshal(newBenchRecord())
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				var y benchRecord
				_ = c.Unmarshal(data, &y)
			}
		})
	}
}

func BenchmarkCBORMarshal(b *testing.B) {
	z := newBenchRecord()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cbor.Marshal(&z)
	}
}

func BenchmarkCBORUnmarshal(b *testing.B) {
	data, _ := cbor.Marshal(newBenchRecord())
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		var y benchRecord
		_ = cbor.Unmarshal(data, &y)
	}
}

func BenchmarkYAMLMarshal(b *testing.B) {
	z := newBenchRecord()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = yaml.Marshal(&z)
	}
}

func BenchmarkYAMLUnmarshal(b *testing.B) {
	data, _ := yaml.Marshal(newBenchRecord())
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var y benchRecord
		_ = yaml.Unmarshal(data, &y)
	}
}
