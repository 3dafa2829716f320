// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package docstore

import (
	"sync"
	"sync/atomic"
)

// Pipe is a Stream that backends feed with Push. Batches queue without
// bound so a producer holding a backend lock never waits on a consumer.
// Delivery order is Push order.
type Pipe struct {
	mu     sync.Mutex
	queue  []Batch
	notify chan struct{}
	out    chan Batch
	done   chan struct{}
	once   sync.Once

	unsubOnce sync.Once

	broken        atomic.Bool
	onUnsubscribe func() error
}

// NewPipe starts a pipe. onUnsubscribe, if not nil, releases backend
// resources and its error is returned from Unsubscribe.
func NewPipe(onUnsubscribe func() error) *Pipe {
	p := &Pipe{
		notify:        make(chan struct{}, 1),
		out:           make(chan Batch),
		done:          make(chan struct{}),
		onUnsubscribe: onUnsubscribe,
	}
	go p.run()
	return p
}

// Push queues a batch. It returns false once the pipe is stopped.
func (p *Pipe) Push(b Batch) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	p.mu.Lock()
	p.queue = append(p.queue, b)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return true
}

// Break stops delivery and marks the stream as closed, the condition the
// health monitor repairs.
func (p *Pipe) Break() {
	p.broken.Store(true)
	p.stop()
}

// Events implements Stream.
func (p *Pipe) Events() <-chan Batch {
	return p.out
}

// IsClosed implements Stream.
func (p *Pipe) IsClosed() bool {
	return p.broken.Load()
}

// Unsubscribe implements Stream. Calling it more than once is safe.
func (p *Pipe) Unsubscribe() error {
	p.stop()

	var err error
	p.unsubOnce.Do(func() {
		if p.onUnsubscribe != nil {
			err = p.onUnsubscribe()
		}
	})
	return err
}

// Done is closed when the pipe stops for any reason.
func (p *Pipe) Done() <-chan struct{} {
	return p.done
}

func (p *Pipe) stop() {
	p.once.Do(func() { close(p.done) })
}

func (p *Pipe) run() {
	defer close(p.out)

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.notify:
				continue
			case <-p.done:
				return
			}
		}
		b := p.queue[0]
		p.queue[0] = Batch{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.out <- b:
		case <-p.done:
			return
		}
	}
}
