// Package comm runs a fixed number of ranks as goroutines and provides the
// blocking point-to-point and collective exchanges used by the distributed
// mesh, vectors and operators.
package comm

import (
	"fmt"
	"math"
	"sync"
)

// linkDepth bounds how far a rank may run ahead of a peer in posted messages
const linkDepth = 256

type World struct {
	size  int
	links [][]chan any // links[src][dst]
}

func NewWorld(size int) (w *World) {
	if size < 1 {
		panic(fmt.Errorf("world size must be positive, have %d", size))
	}
	w = &World{
		size:  size,
		links: make([][]chan any, size),
	}
	for src := 0; src < size; src++ {
		w.links[src] = make([]chan any, size)
		for dst := 0; dst < size; dst++ {
			if src != dst {
				w.links[src][dst] = make(chan any, linkDepth)
			}
		}
	}
	return
}

func (w *World) Size() int { return w.size }

// Comm returns the communicator handle of a rank
func (w *World) Comm(rank int) *Comm {
	return &Comm{world: w, rank: rank}
}

// Run executes fn on every rank concurrently and returns the error of the
// lowest failing rank. A panic on a rank is converted to an error.
func (w *World) Run(fn func(c *Comm) error) (err error) {
	var (
		wg   sync.WaitGroup
		errs = make([]error, w.size)
	)
	for rank := 0; rank < w.size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[rank] = fmt.Errorf("rank %d panic: %v", rank, r)
				}
			}()
			errs[rank] = fn(w.Comm(rank))
		}(rank)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return
}

// Comm is a rank's handle into its World. All collectives must be called by
// every rank in the same order.
type Comm struct {
	world *World
	rank  int
}

// Self is a single rank communicator
func Self() *Comm {
	return NewWorld(1).Comm(0)
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.world.size }

func (c *Comm) send(dst int, msg any) {
	c.world.links[c.rank][dst] <- msg
}

func (c *Comm) recv(src int) any {
	return <-c.world.links[src][c.rank]
}

// SendFloats posts a copy of data to dst
func (c *Comm) SendFloats(dst int, data []float64) {
	buf := make([]float64, len(data))
	copy(buf, data)
	c.send(dst, buf)
}

func (c *Comm) RecvFloats(src int) []float64 {
	return c.recv(src).([]float64)
}

// SendInts posts a copy of data to dst
func (c *Comm) SendInts(dst int, data []int) {
	buf := make([]int, len(data))
	copy(buf, data)
	c.send(dst, buf)
}

func (c *Comm) RecvInts(src int) []int {
	return c.recv(src).([]int)
}

// AllToAllInts sends out[dst] to every other rank and returns what each
// rank sent here, indexed by source. The local slot is passed through.
func (c *Comm) AllToAllInts(out [][]int) (in [][]int) {
	in = make([][]int, c.Size())
	for dst := 0; dst < c.Size(); dst++ {
		if dst != c.rank {
			c.SendInts(dst, out[dst])
		}
	}
	for src := 0; src < c.Size(); src++ {
		if src == c.rank {
			in[src] = out[src]
			continue
		}
		in[src] = c.RecvInts(src)
	}
	return
}

// AllToAllFloats sends out[dst] to every other rank and returns what each
// rank sent here, indexed by source.
func (c *Comm) AllToAllFloats(out [][]float64) (in [][]float64) {
	in = make([][]float64, c.Size())
	for dst := 0; dst < c.Size(); dst++ {
		if dst != c.rank {
			c.SendFloats(dst, out[dst])
		}
	}
	for src := 0; src < c.Size(); src++ {
		if src == c.rank {
			in[src] = out[src]
			continue
		}
		in[src] = c.RecvFloats(src)
	}
	return
}

// AllGather returns every rank's value in rank order
func (c *Comm) AllGather(v float64) (all []float64) {
	all = make([]float64, c.Size())
	for dst := 0; dst < c.Size(); dst++ {
		if dst != c.rank {
			c.send(dst, v)
		}
	}
	for src := 0; src < c.Size(); src++ {
		if src == c.rank {
			all[src] = v
			continue
		}
		all[src] = c.recv(src).(float64)
	}
	return
}

// SumAll reduces in rank order so that every rank holds the same bits
func (c *Comm) SumAll(v float64) (sum float64) {
	if c.Size() == 1 {
		return v
	}
	for _, x := range c.AllGather(v) {
		sum += x
	}
	return
}

func (c *Comm) MaxAll(v float64) (max float64) {
	if c.Size() == 1 {
		return v
	}
	max = math.Inf(-1)
	for _, x := range c.AllGather(v) {
		max = math.Max(max, x)
	}
	return
}

func (c *Comm) MinAll(v float64) (min float64) {
	if c.Size() == 1 {
		return v
	}
	min = math.Inf(1)
	for _, x := range c.AllGather(v) {
		min = math.Min(min, x)
	}
	return
}

func (c *Comm) SumAllInt(v int) int { return int(c.SumAll(float64(v))) }
func (c *Comm) MaxAllInt(v int) int { return int(c.MaxAll(float64(v))) }

// Barrier returns once every rank has entered it
func (c *Comm) Barrier() {
	c.AllGather(0)
}
