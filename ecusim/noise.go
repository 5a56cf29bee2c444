package ecusim

import (
	"github.com/arloliu/go-obdsim/internal/queue"
)

// noiseEntry is one caller-supplied frame sent after a genuine reply.
type noiseEntry struct {
	addr    uint32
	hasAddr bool
	data    []byte
}

// noiseInjector hands out queued noise frames in insertion order, one per genuine reply.
type noiseInjector struct {
	queue queue.Queue[noiseEntry]
}

func newNoiseInjector() *noiseInjector {
	return &noiseInjector{queue: queue.NewLockFreeQueue[noiseEntry]()}
}

func (n *noiseInjector) add(e noiseEntry) {
	n.queue.Enqueue(e)
}

// next pops the oldest entry and resolves its address against the reply address.
func (n *noiseInjector) next(replyAddr uint32) (addr uint32, data []byte, ok bool) {
	e, ok := n.queue.Dequeue()
	if !ok {
		return 0, nil, false
	}
	if e.hasAddr {
		return e.addr, e.data, true
	}

	return replyAddr, e.data, true
}

func (n *noiseInjector) pending() int {
	return n.queue.Length()
}

// reset drains entry by entry; queue.Reset races with concurrent add and next.
func (n *noiseInjector) reset() {
	for {
		if _, ok := n.queue.Dequeue(); !ok {
			return
		}
	}
}
