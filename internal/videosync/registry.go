// Package videosync tracks the playback clock of each session's video
// element, as reported by the browser.
package videosync

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownEvent is returned for event types the registry does not model.
var ErrUnknownEvent = errors.New("unknown video event")

// EventType is a media-element event name.
type EventType string

const (
	EventPlay       EventType = "play"
	EventPause      EventType = "pause"
	EventSeek       EventType = "seeked"
	EventTimeUpdate EventType = "timeupdate"
	EventEnded      EventType = "ended"
)

// Event is one report from the video element.
type Event struct {
	Type     EventType `json:"type"`
	Time     float64   `json:"currentTime"`
	Duration float64   `json:"duration,omitempty"`
}

// State is the last known playback state for a session.
type State struct {
	SessionID   string    `json:"sessionId"`
	IsPlaying   bool      `json:"isPlaying"`
	CurrentTime float64   `json:"currentTime"`
	Duration    float64   `json:"duration"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastSeekAt  time.Time `json:"lastSeekAt"`
	// Ended counts ended events so observers can detect each one.
	Ended uint64 `json:"ended"`
}

// At extrapolates the playback position to now while playing.
func (s State) At(now time.Time) float64 {
	if !s.IsPlaying || s.UpdatedAt.IsZero() {
		return s.CurrentTime
	}
	t := s.CurrentTime + now.Sub(s.UpdatedAt).Seconds()
	if s.Duration > 0 && t > s.Duration {
		return s.Duration
	}
	return t
}

// SeekedWithin reports whether a seek was applied within d of now.
func (s State) SeekedWithin(now time.Time, d time.Duration) bool {
	return !s.LastSeekAt.IsZero() && now.Sub(s.LastSeekAt) <= d
}

// Registry holds one State per session and fans updates out to subscribers.
type Registry struct {
	mu     sync.RWMutex
	states map[string]State
	subs   map[string]map[int]chan State
	nextID int
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		states: make(map[string]State),
		subs:   make(map[string]map[int]chan State),
		now:    time.Now,
	}
}

// Apply folds ev into the session's state and notifies subscribers.
func (r *Registry) Apply(sessionID string, ev Event) (State, error) {
	r.mu.Lock()
	s := r.states[sessionID]
	s.SessionID = sessionID
	now := r.now()

	switch ev.Type {
	case EventPlay:
		s.IsPlaying = true
		s.CurrentTime = ev.Time
	case EventPause:
		s.IsPlaying = false
		s.CurrentTime = ev.Time
	case EventSeek:
		s.CurrentTime = ev.Time
		s.LastSeekAt = now
	case EventTimeUpdate:
		s.CurrentTime = ev.Time
	case EventEnded:
		s.IsPlaying = false
		s.CurrentTime = 0
		s.Ended++
	default:
		r.mu.Unlock()
		return State{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	if ev.Duration > 0 {
		s.Duration = ev.Duration
	}
	s.UpdatedAt = now
	r.states[sessionID] = s

	subs := make([]chan State, 0, len(r.subs[sessionID]))
	for _, ch := range r.subs[sessionID] {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		publish(ch, s)
	}
	return s, nil
}

// publish replaces any unread state so a slow subscriber sees the latest.
func publish(ch chan State, s State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// State returns the session's state; a session never reported is paused at 0.
func (r *Registry) State(sessionID string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[sessionID]
	if !ok {
		return State{SessionID: sessionID}
	}
	return s
}

// Subscribe returns a channel receiving each new state for sessionID and a
// cancel func that must be called once the caller stops reading.
func (r *Registry) Subscribe(sessionID string) (<-chan State, func()) {
	ch := make(chan State, 1)
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.subs[sessionID] == nil {
		r.subs[sessionID] = make(map[int]chan State)
	}
	r.subs[sessionID][id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs[sessionID], id)
			if len(r.subs[sessionID]) == 0 {
				delete(r.subs, sessionID)
			}
		})
	}
}

// Remove forgets a session's state unless someone is still subscribed to it,
// and reports whether the state was dropped.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs[sessionID]) > 0 {
		return false
	}
	delete(r.states, sessionID)
	return true
}

// Len returns the number of sessions with recorded state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
