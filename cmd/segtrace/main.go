// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Segtrace replays or generates an allocator trace against a segheap
// Allocator and reports utilization and throughput.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cznic/mathutil"

	"modernc.org/segheap"
)

var (
	oFile    = flag.String("trace", "", "trace file to replay (a <id> <size> | f <id> | r <id> <size> per line)")
	oRandom  = flag.Int("random", 0, "instead of -trace, generate this many random operations")
	oMax     = flag.Int("max", 4096, "max payload size for -random operations")
	oSeed    = flag.Int64("seed", 1, "PRNG seed for -random")
	oDebug   = flag.Bool("debug", false, "run the invariant checker after every operation")
	oFirst   = flag.Bool("first-fit", false, "use first-fit instead of best-fit placement")
	oMaxHeap = flag.Int("max-heap", 1<<32, "cap on total heap bytes")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	opts := []segheap.Option{segheap.WithMaxRegion(*oMaxHeap)}
	if *oFirst {
		opts = append(opts, segheap.WithFitPolicy(segheap.FitFirst))
	}
	if *oDebug {
		opts = append(opts, segheap.WithDebugChecks(false))
	}

	a, err := segheap.New(opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	var ops []op
	switch {
	case *oFile != "":
		ops, err = readTrace(*oFile)
		if err != nil {
			log.Fatal(err)
		}
	case *oRandom > 0:
		ops, err = randomTrace(*oRandom, *oMax, *oSeed)
		if err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal("nothing to do: pass -trace FILE or -random N")
	}

	live := map[int][]byte{}
	start := time.Now()
	for lineNo, o := range ops {
		if err := apply(a, live, o); err != nil {
			log.Fatalf("line %d: %v: %v", lineNo+1, o, err)
		}
		if *oDebug {
			if ds := a.LastDiagnostics; len(ds) != 0 {
				for _, d := range ds {
					log.Print(d)
				}
				log.Fatalf("line %d: invariant violation, aborting", lineNo+1)
			}
		}
	}
	elapsed := time.Since(start)

	stats := a.Stats()
	util := 0.0
	if stats.RegionBytes > 0 {
		util = 100 * float64(stats.LiveBytes) / float64(stats.RegionBytes)
	}
	log.Printf("ops=%d live=%d region=%d utilization=%.2f%% elapsed=%v (%.0f ops/s)",
		len(ops), stats.Allocs, stats.RegionBytes, util, elapsed, float64(len(ops))/elapsed.Seconds())
}

// op is one parsed trace line: allocate, free, or resize, keyed by an
// arbitrary caller-chosen integer id a prior allocate introduced.
type op struct {
	kind byte // 'a', 'f', 'r'
	id   int
	size int
}

func (o op) String() string {
	switch o.kind {
	case 'a':
		return fmt.Sprintf("a %d %d", o.id, o.size)
	case 'r':
		return fmt.Sprintf("r %d %d", o.id, o.size)
	default:
		return fmt.Sprintf("f %d", o.id)
	}
}

func apply(a *segheap.Allocator, live map[int][]byte, o op) error {
	switch o.kind {
	case 'a':
		b, err := a.Malloc(o.size)
		if err != nil {
			return err
		}
		live[o.id] = b
		return nil
	case 'f':
		b, ok := live[o.id]
		if !ok {
			return fmt.Errorf("free of unknown id %d", o.id)
		}
		delete(live, o.id)
		return a.Free(b)
	case 'r':
		b := live[o.id]
		nb, err := a.Realloc(b, o.size)
		if err != nil {
			return err
		}
		live[o.id] = nb
		return nil
	default:
		return fmt.Errorf("unknown op kind %q", o.kind)
	}
}

func readTrace(path string) ([]op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ops []op
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed line %q", line)
		}

		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad id in %q: %v", line, err)
		}

		o := op{kind: fields[0][0], id: id}
		if o.kind == 'a' || o.kind == 'r' {
			if len(fields) < 3 {
				return nil, fmt.Errorf("missing size in %q", line)
			}
			size, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("bad size in %q: %v", line, err)
			}
			o.size = size
		}
		ops = append(ops, o)
	}
	return ops, sc.Err()
}

// randomTrace generates n operations using a seekable PRNG, the same
// generator segheap's own fuzz tests use, so a -random run and a unit test
// failure can be reproduced against the same seed.
func randomTrace(n, max int, seed int64) ([]op, error) {
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		return nil, err
	}
	rng.Seed(seed)

	ops := make([]op, 0, n)
	nextID := 0
	live := map[int]bool{}
	var ids []int

	for i := 0; i < n; i++ {
		choice := rng.Next() % 3
		if len(ids) == 0 || choice == 0 {
			id := nextID
			nextID++
			ids = append(ids, id)
			live[id] = true
			ops = append(ops, op{kind: 'a', id: id, size: rng.Next()%max + 1})
			continue
		}

		idx := rng.Next() % len(ids)
		id := ids[idx]
		if choice == 1 {
			ops = append(ops, op{kind: 'r', id: id, size: rng.Next()%max + 1})
			continue
		}

		ops = append(ops, op{kind: 'f', id: id})
		ids = append(ids[:idx], ids[idx+1:]...)
		delete(live, id)
	}
	return ops, nil
}
