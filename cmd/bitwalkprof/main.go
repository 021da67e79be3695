// Command bitwalkprof runs encode/decode loops over a representative value
// and writes a heap profile, for use with go tool pprof.
package main

import (
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"

	"github.com/rawbytedev/bitwalk"
	"github.com/rawbytedev/bitwalk/pkg/swiss"
)

type sample struct {
	Val      []string
	Mod      []int8
	Integers []int16
	Float3   []float32
	Float6   []float64
	Index    *swiss.Map[string, uint32]
}

func main() {
	n := flag.Int("n", 10000, "encode/decode iterations")
	modePath := flag.String("mode", "", "YAML mode profile")
	memprofile := flag.String("memprofile", "mem.prof", "heap profile output")
	listen := flag.String("pprof", "", "serve net/http/pprof on this address and wait")
	zeroCopy := flag.Bool("unsafe", false, "alias decoded strings and numeric slices into the input")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if *listen != "" {
		go func() {
			log.Info("pprof listening", zap.String("addr", *listen))
			if err := http.ListenAndServe(*listen, nil); err != nil {
				log.Error("pprof server", zap.Error(err))
			}
		}()
	}

	var mode bitwalk.Mode
	if *modePath != "" {
		raw, err := os.ReadFile(*modePath)
		if err != nil {
			log.Fatal("read mode profile", zap.String("path", *modePath), zap.Error(err))
		}
		if mode, err = bitwalk.ParseMode(raw); err != nil {
			log.Fatal("parse mode profile", zap.String("path", *modePath), zap.Error(err))
		}
	}
	opts := []bitwalk.Option{bitwalk.WithMode(mode), bitwalk.WithLogger(log.Named("codec").WithOptions(zap.IncreaseLevel(zap.InfoLevel)))}
	if *zeroCopy {
		opts = append(opts, bitwalk.WithUnsafeStrings(), bitwalk.WithUnsafePrimitives())
	}
	c, err := bitwalk.NewCodec(opts...)
	if err != nil {
		log.Fatal("codec", zap.Error(err))
	}

	f, err := os.Create(*memprofile)
	if err != nil {
		log.Fatal("create profile", zap.Error(err))
	}
	defer f.Close()
	runtime.MemProfileRate = 1

	z := sample{
		Val:      []string{"azerty", "hello", "world", "random"},
		Mod:      []int8{12, 10, 13, 0},
		Integers: []int16{100, 250, 300},
		Float3:   []float32{12.13, 16.23, 75.1},
		Float6:   []float64{100.5, 165.63, 153.5},
		Index:    swiss.NewMap[string, uint32](),
	}
	for i, v := range z.Val {
		z.Index.Put(v, uint32(i))
	}

	start := time.Now()
	var size int
	for i := 0; i < *n; i++ {
		data, err := c.Marshal(&z)
		if err != nil {
			log.Fatal("encode", zap.Int("iteration", i), zap.Error(err))
		}
		size = len(data)
		var res sample
		if err := c.Unmarshal(data, &res); err != nil {
			log.Fatal("decode", zap.Int("iteration", i), zap.Error(err))
		}
	}
	log.Info("done",
		zap.Stringer("mode", mode),
		zap.Int("iterations", *n),
		zap.Int("bytes", size),
		zap.Duration("elapsed", time.Since(start)))

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("write profile", zap.Error(err))
	}
	if *listen != "" {
		select {}
	}
}
