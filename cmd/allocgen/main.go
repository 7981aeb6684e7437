// allocgen is a stand-in traced program: it prints a random stream of
// allocation, free and corruption events in the alloc-tracer line protocol.
//
//	alloc-tracer -- allocgen -n 500 -interval 50ms
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/mrzor/alloc-tracer/internal/event"
)

const (
	addressSpace = 200000
	minSize      = 16
	maxSize      = 1024
	maxLive      = 24
	label        = "aa"
)

// generator keeps the addresses it has handed out, oldest first.
type generator struct {
	rng  *rand.Rand
	live []uint64
	used map[uint64]struct{}
}

func newGenerator(seed uint64) *generator {
	return &generator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		used: make(map[uint64]struct{}),
	}
}

// step produces the lines for one allocation round: the allocation, then
// once enough chunks are live, a free of the oldest and sometimes a
// corruption report at a random address. Address reuse yields a junk line
// instead, which the tracker must ignore.
func (g *generator) step() []string {
	address := g.rng.Uint64N(addressSpace)
	if _, ok := g.used[address]; ok {
		return []string{"used"}
	}

	size := minSize + g.rng.Uint64N(maxSize-minSize)
	lines := []string{event.Encode(event.Alloc(address, size, label))}
	g.used[address] = struct{}{}
	g.live = append(g.live, address)

	if len(g.live) < maxLive {
		return lines
	}

	oldest := g.live[0]
	g.live = g.live[1:]
	delete(g.used, oldest)
	lines = append(lines, event.Encode(event.Free(oldest, label+"a")))

	if g.rng.IntN(maxLive) == 1 {
		lines = append(lines, event.Encode(event.Corrupted(g.rng.Uint64N(addressSpace))))
	}
	return lines
}

// run writes count rounds (forever when count is 0), flushing every line.
func run(w io.Writer, g *generator, count int, interval time.Duration) error {
	bw := bufio.NewWriter(w)
	for i := 0; count == 0 || i < count; i++ {
		for _, line := range g.step() {
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return fmt.Errorf("writing event: %w", err)
			}
			if err := bw.Flush(); err != nil {
				return fmt.Errorf("flushing event: %w", err)
			}
			if interval > 0 {
				time.Sleep(interval)
			}
		}
	}
	return nil
}

func main() {
	count := flag.Int("n", 0, "allocation rounds to emit (0 runs forever)")
	seed := flag.Uint64("seed", 0, "random seed (0 picks one from the clock)")
	interval := flag.Duration("interval", 100*time.Millisecond, "pause after each line")
	flag.Parse()

	if *seed == 0 {
		//nolint:gosec // Wall clock as seed is fine for a demo stream
		*seed = uint64(time.Now().UnixNano())
	}

	if err := run(os.Stdout, newGenerator(*seed), *count, *interval); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
