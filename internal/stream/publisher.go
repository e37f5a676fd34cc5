package stream

import (
	"iter"
	"sync"

	"tradeagent/internal/agent"
	"tradeagent/internal/logger"
)

// Sink is a connected client able to receive frames
type Sink interface {
	Send(f Frame) error
}

// Publisher forwards loop events to a sink as they are produced.
// After the sink fails once, the publisher is disconnected and drops
// every later event; the run itself is never interrupted.
type Publisher struct {
	sink         Sink
	log          *logger.Logger
	mu           sync.Mutex
	disconnected bool
	sent         int
	dropped      int
}

func NewPublisher(sink Sink, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{sink: sink, log: log}
}

// Publish forwards one event. It is a no-op once disconnected.
func (p *Publisher) Publish(ev agent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disconnected || p.sink == nil {
		p.dropped++
		return
	}

	if err := p.sink.Send(FrameOf(ev)); err != nil {
		p.log.Warn("client disconnected, dropping further events: %v", err)
		p.disconnected = true
		p.dropped++
		return
	}
	p.sent++
}

// Drain publishes a whole run and returns its terminal event
func (p *Publisher) Drain(events iter.Seq[agent.Event]) agent.Event {
	var last agent.Event
	for ev := range events {
		p.Publish(ev)
		last = ev
	}
	return last
}

// Close marks the publisher disconnected
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = true
}

// Connected reports whether events are still being forwarded
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disconnected && p.sink != nil
}

// Stats returns how many events were sent and dropped
func (p *Publisher) Stats() (sent, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.dropped
}
