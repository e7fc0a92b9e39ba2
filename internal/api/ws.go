package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"foodsim/internal/event"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage is the envelope of the events socket. Clients send subscribe and
// unsubscribe with a topic; the server answers with ack, event and error.
type wsMessage struct {
	Type  string       `json:"type"`
	Topic string       `json:"topic,omitempty"`
	Event *event.Event `json:"event,omitempty"`
	Error string       `json:"error,omitempty"`
}

// EventsWSHandler handles /v1/events/ws
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(m wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}

	subs := map[string]chan event.Event{}
	var wg sync.WaitGroup
	defer func() {
		for topic, ch := range subs {
			s.Broker.Unsubscribe(topic, ch)
		}
		wg.Wait()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// Keepalive
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				wmu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = write(wsMessage{Type: "error", Error: "invalid message"})
			continue
		}
		topic := msg.Topic
		if topic == "" {
			topic = AllTopics
		}
		switch msg.Type {
		case "subscribe":
			if _, ok := subs[topic]; ok {
				_ = write(wsMessage{Type: "ack", Topic: topic})
				continue
			}
			ch := s.Broker.Subscribe(topic)
			subs[topic] = ch
			wg.Add(1)
			go func(topic string, ch chan event.Event) {
				defer wg.Done()
				for evt := range ch {
					if err := write(wsMessage{Type: "event", Topic: topic, Event: &evt}); err != nil {
						return
					}
				}
			}(topic, ch)
			_ = write(wsMessage{Type: "ack", Topic: topic})
		case "unsubscribe":
			if ch, ok := subs[topic]; ok {
				delete(subs, topic)
				s.Broker.Unsubscribe(topic, ch)
			}
			_ = write(wsMessage{Type: "ack", Topic: topic})
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		default:
			_ = write(wsMessage{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}
