package api

import (
	"log"
	"strings"
	"sync"

	"foodsim/internal/event"
)

// AllTopics receives every event regardless of its kind.
const AllTopics = "*"

// TopicOf maps an event type such as "order.status" to its topic, "order".
func TopicOf(typ string) string {
	topic, _, _ := strings.Cut(typ, ".")
	return topic
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan event.Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan event.Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan event.Event {
	ch := make(chan event.Event, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan event.Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan event.Event) {
	b.mu.Lock()
	if m := b.subs[topic]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, topic)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish delivers evt to subscribers of topic. Slow subscribers miss events.
func (b *Broker) Publish(topic string, evt event.Event) {
	b.mu.Lock()
	m := b.subs[topic]
	for ch := range m {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}

// Publisher moves simulation events onto a broker from its own goroutine, so
// the simulation never blocks on subscribers or on Redis.
type Publisher struct {
	Broker EventBroker
	Stop   chan struct{}
	queue  chan event.Event
	done   chan struct{}
}

func NewPublisher(b EventBroker, buffer int) *Publisher {
	return &Publisher{Broker: b, Stop: make(chan struct{}), queue: make(chan event.Event, buffer), done: make(chan struct{})}
}

// Emit implements event.Emitter. Events are dropped when the buffer is full.
func (p *Publisher) Emit(evt event.Event) {
	select {
	case p.queue <- evt:
	default:
		log.Printf("events: queue full, dropping %s", evt.Type)
	}
}

func (p *Publisher) Start() {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.Stop:
				return
			case evt := <-p.queue:
				p.Broker.Publish(TopicOf(evt.Type), evt)
				p.Broker.Publish(AllTopics, evt)
			}
		}
	}()
}

func (p *Publisher) Close() {
	close(p.Stop)
	<-p.done
}
