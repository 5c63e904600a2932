package handlers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/api"
	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/models"
	"github.com/linesmerrill/jurysane-api/trial"
)

// writeWait bounds a single push to a subscriber
const writeWait = 5 * time.Second

// subscriberQueue is how many events wait for a slow connection
const subscriberQueue = 16

// subscriber owns one connection. Events are queued by Publish and
// written by run, so a stalled client only holds up itself.
type subscriber struct {
	events chan models.SessionEvent
	done   chan struct{}
	once   sync.Once
	write  func(models.SessionEvent) error
	close  func() error
}

func newSubscriber(write func(models.SessionEvent) error, closeFn func() error) *subscriber {
	return &subscriber{
		events: make(chan models.SessionEvent, subscriberQueue),
		done:   make(chan struct{}),
		write:  write,
		close:  closeFn,
	}
}

func connSubscriber(conn *websocket.Conn) *subscriber {
	return newSubscriber(func(event models.SessionEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(event)
	}, conn.Close)
}

// offer queues event without blocking and reports whether it fit
func (s *subscriber) offer(event models.SessionEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

// run writes queued events until stop is called or a write fails
func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			if err := s.write(event); err != nil {
				zap.S().Warnw("dropping event subscriber", "session_id", event.SessionID, "error", err)
				s.stop()
				return
			}
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.done)
		_ = s.close()
	})
}

// EventHub pushes session events to the websocket subscribers of each session
type EventHub struct {
	upgrader websocket.Upgrader
	clients  map[string]map[*subscriber]struct{}
	mutex    sync.Mutex
}

// NewEventHub builds a hub accepting upgrades from the given origins.
// An empty list or "*" accepts any origin.
func NewEventHub(origins []string) *EventHub {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
		clients: make(map[string]map[*subscriber]struct{}),
	}
}

func (h *EventHub) add(sessionID string, s *subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*subscriber]struct{})
	}
	h.clients[sessionID][s] = struct{}{}
}

func (h *EventHub) remove(sessionID string, s *subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients[sessionID], s)
	if len(h.clients[sessionID]) == 0 {
		delete(h.clients, sessionID)
	}
}

// Subscribers reports how many connections follow sessionID
func (h *EventHub) Subscribers(sessionID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients[sessionID])
}

// Publish queues event for every subscriber of its session. It never
// waits on a connection; a subscriber whose queue is full misses the event.
func (h *EventHub) Publish(event models.SessionEvent) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for s := range h.clients[event.SessionID] {
		if !s.offer(event) {
			zap.S().Debugw("event subscriber is behind, skipping event", "session_id", event.SessionID, "type", event.Type)
		}
	}
}

// Close disconnects every subscriber
func (h *EventHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, subs := range h.clients {
		for s := range subs {
			s.stop()
		}
		delete(h.clients, id)
	}
}

// Events serves the push stream of one trial session
type Events struct {
	Hub     *EventHub
	Service *trial.Service
}

// SessionEventsHandler upgrades to a websocket and streams the session's events
func (e Events) SessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	_, err := e.Service.GetSession(ctx, sessionID)
	cancel()
	if err != nil {
		if errors.Is(err, trial.ErrSessionNotFound) {
			config.ErrorStatus("failed to get trial session", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get trial session", http.StatusInternalServerError, w, err)
		return
	}

	conn, err := e.Hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade error", "session_id", sessionID, "error", err)
		return
	}

	s := connSubscriber(conn)
	e.Hub.add(sessionID, s)
	go s.run()
	zap.S().Debugw("event subscriber connected", "session_id", sessionID)

	defer func() {
		e.Hub.remove(sessionID, s)
		s.stop()
		zap.S().Debugw("event subscriber disconnected", "session_id", sessionID)
	}()

	// Clients never send; reading just notices the close.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
