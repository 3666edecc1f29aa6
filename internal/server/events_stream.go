package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/docpoller/internal/events"
	"github.com/aristath/docpoller/internal/utils"
)

const (
	streamBuffer      = 64
	heartbeatInterval = 30 * time.Second
	wsWriteTimeout    = 5 * time.Second
)

// EventsStreamHandler streams live events over SSE or a websocket.
type EventsStreamHandler struct {
	events EventSource
	log    zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(source EventSource, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		events: source,
		log:    log.With().Str("component", "events_stream").Logger(),
	}
}

// typeFilter parses ?types=A,B. A nil filter lets everything through.
func typeFilter(r *http.Request) map[events.EventType]bool {
	types := utils.ParseCSV(r.URL.Query().Get("types"))
	if len(types) == 0 {
		return nil
	}
	allowed := make(map[events.EventType]bool, len(types))
	for _, t := range types {
		allowed[events.EventType(t)] = true
	}
	return allowed
}

// ServeSSE handles GET /api/events/stream requests.
func (h *EventsStreamHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "Events not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	allowed := typeFilter(r)
	ch, unsubscribe := h.events.Subscribe(streamBuffer)
	defer unsubscribe()

	h.log.Info().Str("transport", "sse").Msg("Client connected to event stream")

	fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Str("transport", "sse").Msg("Client disconnected from event stream")
			return

		case event, ok := <-ch:
			if !ok {
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", h.encode(&event))
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

// ServeWebSocket handles GET /api/events/ws requests.
func (h *EventsStreamHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "Events not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	allowed := typeFilter(r)
	ch, unsubscribe := h.events.Subscribe(streamBuffer)
	defer unsubscribe()

	// Clients only listen; CloseRead handles their close frames.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Str("transport", "websocket").Msg("Client connected to event stream")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("transport", "websocket").Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			if err := h.write(ctx, conn, &event); err != nil {
				h.log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *EventsStreamHandler) encode(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}
