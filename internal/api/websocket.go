package api

import (
	"log"
	"net/http"

	"martingale-core/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEnvelope wraps every pushed message with its topic.
type wsEnvelope struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

var wsTopics = []events.Event{
	events.EventStrategyCreated,
	events.EventStrategyPaused,
	events.EventStrategyResumed,
	events.EventStrategyStopped,
	events.EventStrategyComplete,
	events.EventStrategyFailed,
	events.EventTradeExecuted,
	events.EventTradeFailed,
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	// Fan every topic into one channel so a single writer owns the conn.
	merged := make(chan wsEnvelope, 200)
	stop := make(chan struct{})
	defer close(stop)

	for _, topic := range wsTopics {
		t := topic
		stream, unsub := s.Bus.Subscribe(t, 100)
		defer unsub()
		go func() {
			for msg := range stream {
				select {
				case merged <- wsEnvelope{Topic: string(t), Data: msg}:
				case <-stop:
					return
				}
			}
		}()
	}

	for env := range merged {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
