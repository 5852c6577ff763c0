package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operations reported on the progress stream.
const (
	OperationTranscription = "transcription"
	OperationGeneration    = "generation"
)

// ProgressEvent is one step of a long-running stage operation.
type ProgressEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Stage     int       `json:"stage"`
	Operation string    `json:"operation"`
	Kind      string    `json:"kind"`
	Step      int       `json:"step,omitempty"`
	Total     int       `json:"total,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

const subscriberBuffer = 32

// ProgressHub fans progress events out to subscribers of a session. Slow
// subscribers miss events rather than block the publisher.
type ProgressHub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[int]chan ProgressEvent
	nextID int
	logger *logrus.Logger
}

// NewProgressHub creates an empty hub.
func NewProgressHub(logger *logrus.Logger) *ProgressHub {
	return &ProgressHub{
		subs:   make(map[uuid.UUID]map[int]chan ProgressEvent),
		logger: logger,
	}
}

// Subscribe returns a channel of events for sessionID and a function that
// ends the subscription and closes the channel.
func (h *ProgressHub) Subscribe(sessionID uuid.UUID) (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan ProgressEvent, subscriberBuffer)
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan ProgressEvent)
	}
	h.subs[sessionID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber of its session.
func (h *ProgressHub) Publish(ev ProgressEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			h.logger.WithFields(logrus.Fields{
				"session_id": ev.SessionID,
				"kind":       ev.Kind,
			}).Debug("Dropping progress event for slow subscriber")
		}
	}
}

// Subscribers returns the number of listeners on a session.
func (h *ProgressHub) Subscribers(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
