package router

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gatewatch/gatewatch/events"
)

// decisionBroadcaster fans RiskDecisions out to every connected analyst
// console websocket, mirroring the mutex-guarded registry the gateway's
// own streaming metrics tracker uses for its connected clients — here the
// registry holds outbound channels instead of per-connection counters.
type decisionBroadcaster struct {
	mu      sync.Mutex
	clients map[chan events.RiskDecision]struct{}
	log     zerolog.Logger
}

func newDecisionBroadcaster(log zerolog.Logger) *decisionBroadcaster {
	return &decisionBroadcaster{
		clients: make(map[chan events.RiskDecision]struct{}),
		log:     log,
	}
}

func (b *decisionBroadcaster) subscribe() chan events.RiskDecision {
	ch := make(chan events.RiskDecision, 32)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *decisionBroadcaster) unsubscribe(ch chan events.RiskDecision) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// Publish fans decision out to every subscriber. A slow subscriber whose
// buffer is full is dropped from delivery for this decision rather than
// blocking the publisher — the websocket feed is best-effort.
func (b *decisionBroadcaster) Publish(decision events.RiskDecision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- decision:
		default:
			b.log.Warn().Msg("dropping decision for slow console subscriber")
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveDecisionStream upgrades to a websocket and pushes every published
// RiskDecision to the client as JSON until it disconnects.
func (b *decisionBroadcaster) serveDecisionStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for decision := range ch {
		payload, err := json.Marshal(decision)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
