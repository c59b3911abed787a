package workout

import (
	"sync"
	"time"

	"github.com/claude/ironsession/internal/models"
)

// EventType names a coordinator event.
type EventType string

const (
	EventTick             EventType = "tick"
	EventRestComplete     EventType = "rest_complete"
	EventSetLogged        EventType = "set_logged"
	EventSessionStarted   EventType = "session_started"
	EventSessionRecovered EventType = "session_recovered"
	EventSessionFinished  EventType = "session_finished"
)

// Event is published to subscribers of a coordinator.
type Event struct {
	Type           EventType              `json:"type"`
	WorkoutName    string                 `json:"workout_name"`
	SessionID      string                 `json:"session_id,omitempty"`
	At             time.Time              `json:"at"`
	ElapsedSeconds int                    `json:"elapsed_seconds"`
	RestTimer      *models.RestTimerState `json:"rest_timer,omitempty"`
	Set            *models.SetLogRow      `json:"set,omitempty"`
	Summary        *models.SessionSummary `json:"summary,omitempty"`
}

type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Event]struct{})}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// slow subscriber, skip
		}
	}
}

func (b *broadcaster) subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[ch] = struct{}{}
	}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// close ends every subscription. Later subscribers get a closed channel.
func (b *broadcaster) close() {
	b.mu.Lock()
	for ch := range b.subs {
		close(ch)
	}
	b.subs = make(map[chan Event]struct{})
	b.closed = true
	b.mu.Unlock()
}
