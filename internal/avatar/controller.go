// Package avatar decides, frame by frame, what the tutor avatar's face and
// body should do while a reply plays, from whichever clock is authoritative:
// the part's own narration audio in chat mode, or the session's video
// element in video mode.
package avatar

import (
	"sort"
	"sync"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/lipsync"
	"github.com/pankajydv07/ai-tutor/gateway/internal/turn"
	"github.com/pankajydv07/ai-tutor/gateway/internal/videosync"
)

// State is the controller's mode.
type State string

const (
	StateIdle         State = "idle"
	StateChatSpeaking State = "chat_speaking"
	StateVideoSyncing State = "video_syncing"
)

// Part is one reply part as the controller plays it.
type Part struct {
	ID        string
	SessionID string
	Video     bool
	// Legacy parts carry their own muted audio, whose clock must be kept
	// aligned with the video element.
	Legacy     bool
	Expression turn.Expression
	Animation  turn.Animation
	LipSync    *lipsync.Track
	Timeline   []turn.TimelineEntry
	// Duration is the narration length in seconds; zero falls back to the
	// lip-sync track.
	Duration float64
}

// PartFromMessage converts a wire message into a playable part.
func PartFromMessage(id string, m turn.Message) Part {
	video := m.Mode == turn.ModeVideo || m.SceneScript != ""
	return Part{
		ID:         id,
		SessionID:  m.SessionID,
		Video:      video,
		Legacy:     video && m.Audio != "" && m.AudioURL == "",
		Expression: m.FacialExpression,
		Animation:  m.Animation,
		LipSync:    m.LipSync,
		Timeline:   m.AnimationTimeline,
	}
}

func (p *Part) length() float64 {
	if p.Duration > 0 {
		return p.Duration
	}
	if p.LipSync == nil {
		return 0
	}
	if p.LipSync.Metadata.Duration > 0 {
		return p.LipSync.Metadata.Duration
	}
	if n := len(p.LipSync.MouthCues); n > 0 {
		return p.LipSync.MouthCues[n-1].End
	}
	return 0
}

// VideoClock exposes the playback state of each session's video.
type VideoClock interface {
	State(sessionID string) videosync.State
}

// Config tunes the controller.
type Config struct {
	// Smoothing is the per-second rate at which morph weights approach
	// their target.
	Smoothing float64
	// ReseekThreshold is the drift in seconds beyond which legacy audio is
	// re-seeked to the video clock.
	ReseekThreshold float64
	// SeekWindow is how long after a video seek legacy audio keeps
	// following the video clock unconditionally.
	SeekWindow time.Duration
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		Smoothing:       18,
		ReseekThreshold: 0.2,
		SeekWindow:      500 * time.Millisecond,
	}
}

// Frame is the controller's output for one tick.
type Frame struct {
	State      State           `json:"state"`
	PartID     string          `json:"partId,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Clock      float64         `json:"clock"`
	Shape      lipsync.Shape   `json:"shape,omitempty"`
	Weights    Weights         `json:"weights"`
	Expression turn.Expression `json:"facialExpression"`
	Animation  turn.Animation  `json:"animation"`
	Consumed   []string        `json:"consumed,omitempty"`
	Reseeked   bool            `json:"reseeked,omitempty"`
}

// Controller is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	videos VideoClock
	now    func() time.Time

	queue   []Part
	cur     *Part
	state   State
	started time.Time

	audioTime     float64
	audioReported bool
	audioEnded    bool

	endedSeen uint64
	legacy    legacyAudio

	timeline   []turn.TimelineEntry
	expression turn.Expression
	animation  turn.Animation

	weights  Weights
	consumed []string
}

// NewController creates an idle controller reading video state from videos.
func NewController(cfg Config, videos VideoClock) *Controller {
	if cfg.Smoothing <= 0 {
		cfg.Smoothing = DefaultConfig().Smoothing
	}
	if cfg.ReseekThreshold <= 0 {
		cfg.ReseekThreshold = DefaultConfig().ReseekThreshold
	}
	if cfg.SeekWindow <= 0 {
		cfg.SeekWindow = DefaultConfig().SeekWindow
	}
	if videos == nil {
		videos = videosync.NewRegistry()
	}
	return &Controller{
		cfg:        cfg,
		videos:     videos,
		now:        time.Now,
		state:      StateIdle,
		expression: turn.ExpressionDefault,
		animation:  turn.AnimationIdle,
		weights:    newWeights(),
	}
}

// Enqueue appends a part; it starts once every earlier part is consumed.
func (c *Controller) Enqueue(p Part) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, p)
}

// ReportAudio feeds the browser's audio clock for a chat part.
func (c *Controller) ReportAudio(partID string, t float64, ended bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.cur.ID != partID || c.state != StateChatSpeaking {
		return
	}
	c.audioTime = t
	c.audioReported = true
	c.audioEnded = c.audioEnded || ended
}

// Skip consumes the current part.
func (c *Controller) Skip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		c.consume()
	}
}

// State returns the current mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of parts queued behind the current one.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Tick advances the controller by dt seconds and returns the frame to draw.
func (c *Controller) Tick(dt float64) Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur == nil {
		c.startNext()
	}

	var (
		target   string
		shape    lipsync.Shape
		clock    float64
		reseeked bool
	)
	switch c.state {
	case StateChatSpeaking:
		clock, shape, target = c.tickChat()
	case StateVideoSyncing:
		clock, shape, target, reseeked = c.tickVideo(dt)
	default:
		c.animation = turn.AnimationIdle
	}
	c.weights.step(target, c.cfg.Smoothing, dt)

	f := Frame{
		State:      c.state,
		Clock:      clock,
		Shape:      shape,
		Weights:    c.weights.clone(),
		Expression: c.expression,
		Animation:  c.animation,
		Consumed:   c.consumed,
		Reseeked:   reseeked,
	}
	if c.cur != nil {
		f.PartID = c.cur.ID
		f.SessionID = c.cur.SessionID
	}
	c.consumed = nil
	return f
}

func (c *Controller) startNext() {
	if len(c.queue) == 0 {
		c.state = StateIdle
		return
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	c.cur = &p
	c.started = c.now()
	c.audioTime, c.audioReported, c.audioEnded = 0, false, false
	c.expression = p.Expression
	c.animation = p.Animation
	c.timeline = nil
	c.legacy = legacyAudio{}

	if p.Video {
		c.state = StateVideoSyncing
		c.endedSeen = c.videos.State(p.SessionID).Ended
		return
	}
	c.state = StateChatSpeaking
	if len(p.Timeline) > 0 {
		c.timeline = append([]turn.TimelineEntry(nil), p.Timeline...)
		sort.SliceStable(c.timeline, func(i, j int) bool { return c.timeline[i].Time < c.timeline[j].Time })
	}
}

func (c *Controller) tickChat() (float64, lipsync.Shape, string) {
	elapsed := c.now().Sub(c.started).Seconds()
	c.fireTimeline(elapsed)

	clock := elapsed
	if c.audioReported {
		clock = c.audioTime
	}
	if c.audioEnded || clock >= c.cur.length() {
		c.consume()
		return clock, "", ""
	}
	shape, target := c.lookup(clock)
	return clock, shape, target
}

// fireTimeline applies every timeline entry whose offset has passed. Entries
// run on wall time from part start, independent of audio progress.
func (c *Controller) fireTimeline(elapsed float64) {
	for len(c.timeline) > 0 && c.timeline[0].Time <= elapsed {
		e := c.timeline[0]
		c.timeline = c.timeline[1:]
		if e.Animation != "" {
			c.animation = e.Animation
		}
		if e.Expression != "" {
			c.expression = e.Expression
		}
	}
}

// ObserveVideo handles a pushed video state. An ended event for the current
// video part consumes the session and returns true; a pause drops the body
// to idle before the next tick.
func (c *Controller) ObserveVideo(s videosync.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || !c.cur.Video || c.cur.SessionID != s.SessionID {
		return false
	}
	if s.Ended > c.endedSeen {
		c.endedSeen = s.Ended
		c.consumeSession(s.SessionID)
		return true
	}
	if !s.IsPlaying {
		c.animation = turn.AnimationIdle
	}
	return false
}

func (c *Controller) tickVideo(dt float64) (float64, lipsync.Shape, string, bool) {
	now := c.now()
	vs := c.videos.State(c.cur.SessionID)

	var reseeked bool
	clock := vs.At(now)
	if c.cur.Legacy {
		reseeked = c.legacy.track(vs, now, dt, c.cfg)
		clock = c.legacy.time
	}

	if !vs.IsPlaying {
		// Paused video: mouth at rest and body idle, whatever the part says.
		c.animation = turn.AnimationIdle
		return clock, "", "", reseeked
	}
	c.animation = c.cur.Animation
	shape, target := c.lookup(clock)
	return clock, shape, target, reseeked
}

func (c *Controller) lookup(clock float64) (lipsync.Shape, string) {
	if c.cur.LipSync == nil {
		return "", ""
	}
	cue, ok := c.cur.LipSync.CueAt(clock)
	if !ok {
		return "", ""
	}
	target, _ := TargetFor(cue.Value)
	return cue.Value, target
}

func (c *Controller) consume() {
	c.consumed = append(c.consumed, c.cur.ID)
	c.cur = nil
	c.state = StateIdle
	c.animation = turn.AnimationIdle
	c.timeline = nil
}

// consumeSession consumes the current part and every queued part of the
// same session, since one video covers all of them.
func (c *Controller) consumeSession(sessionID string) {
	c.consume()
	kept := c.queue[:0]
	for _, p := range c.queue {
		if p.Video && p.SessionID == sessionID {
			c.consumed = append(c.consumed, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	c.queue = kept
}
