package queue

import (
    "context"
    "log"
    "sync"
)

// PublishFunc delivers one event to the broker.
type PublishFunc func(ctx context.Context, ev Event) error

// Dispatcher decouples committed transitions from notification delivery.
// Notify never blocks: events go into a buffered channel drained by a single
// worker, and are dropped with a log line when the buffer is full.
type Dispatcher struct {
    events  chan Event
    publish PublishFunc
    wg      sync.WaitGroup
}

// NewDispatcher returns a Dispatcher with room for buffer pending events.
func NewDispatcher(buffer int, publish PublishFunc) *Dispatcher {
    if buffer < 1 {
        buffer = 1
    }
    return &Dispatcher{events: make(chan Event, buffer), publish: publish}
}

// Notify enqueues ev for delivery.
func (d *Dispatcher) Notify(ev Event) {
    select {
    case d.events <- ev:
    default:
        log.Printf("notify: buffer full, dropping %s event %s", ev.Type, ev.ID)
    }
}

// Start runs the delivery worker until ctx is cancelled.  Events still
// buffered at that point are flushed before Wait returns.
func (d *Dispatcher) Start(ctx context.Context) {
    d.wg.Add(1)
    go func() {
        defer d.wg.Done()
        for {
            select {
            case ev := <-d.events:
                d.deliver(ctx, ev)
            case <-ctx.Done():
                d.drain()
                return
            }
        }
    }()
}

// Wait blocks until the worker started by Start has exited.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) drain() {
    for {
        select {
        case ev := <-d.events:
            d.deliver(context.Background(), ev)
        default:
            return
        }
    }
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
    if err := d.publish(ctx, ev); err != nil {
        log.Printf("notify: publish %s event %s failed: %v", ev.Type, ev.ID, err)
    }
}
