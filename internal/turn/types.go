// Package turn converts one user utterance into 1-5 hydrated reply parts.
package turn

import (
	"github.com/pankajydv07/ai-tutor/gateway/internal/pipeline"
)

// MaxParts bounds the number of parts a single turn may produce.
const MaxParts = 5

// Mode selects plain chat or narrated-video replies.
type Mode string

const (
	ModePlain Mode = "plain"
	ModeVideo Mode = "video"
)

// Expression is the avatar's facial expression tag.
type Expression string

const (
	ExpressionSmile     Expression = "smile"
	ExpressionSad       Expression = "sad"
	ExpressionAngry     Expression = "angry"
	ExpressionSurprised Expression = "surprised"
	ExpressionFunnyFace Expression = "funnyFace"
	ExpressionDefault   Expression = "default"
)

var expressions = map[Expression]bool{
	ExpressionSmile: true, ExpressionSad: true, ExpressionAngry: true,
	ExpressionSurprised: true, ExpressionFunnyFace: true, ExpressionDefault: true,
}

// Valid reports membership in the expression set.
func (e Expression) Valid() bool { return expressions[e] }

// Animation is the avatar's body animation clip.
type Animation string

const (
	AnimationTalking0  Animation = "Talking_0"
	AnimationTalking1  Animation = "Talking_1"
	AnimationTalking2  Animation = "Talking_2"
	AnimationCrying    Animation = "Crying"
	AnimationLaughing  Animation = "Laughing"
	AnimationRumba     Animation = "Rumba"
	AnimationIdle      Animation = "Idle"
	AnimationTerrified Animation = "Terrified"
	AnimationAngry     Animation = "Angry"
)

var animations = map[Animation]bool{
	AnimationTalking0: true, AnimationTalking1: true, AnimationTalking2: true,
	AnimationCrying: true, AnimationLaughing: true, AnimationRumba: true,
	AnimationIdle: true, AnimationTerrified: true, AnimationAngry: true,
}

// Valid reports membership in the animation set.
func (a Animation) Valid() bool { return animations[a] }

// TimelineEntry overrides animation and expression at Time seconds after a
// plain part starts playing.
type TimelineEntry struct {
	Time       float64    `json:"time"`
	Animation  Animation  `json:"animation"`
	Expression Expression `json:"facialExpression"`
}

// Base holds the fields every part carries.
type Base struct {
	Text       string
	Expression Expression
	Animation  Animation
}

// Part is either a *PlainPart or a *VideoPart.
type Part interface {
	base() Base
	Mode() Mode
}

// PlainPart is a chat reply spoken by the avatar from its own audio.
// Audio is nil only on the best-effort fallback paths.
type PlainPart struct {
	Base
	Timeline []TimelineEntry
	Audio    *pipeline.Narration
}

func (p *PlainPart) base() Base { return p.Base }

// Mode implements Part.
func (p *PlainPart) Mode() Mode { return ModePlain }

// VideoPart is one scene of a narrated video. PartAudio is embedded in the
// part's rendered clip; Combined is the whole turn's narration that drives
// the live avatar.
type VideoPart struct {
	Base
	Index       int
	Narration   string
	SceneScript string
	PartAudio   *pipeline.Narration
	Combined    *pipeline.Narration
}

func (p *VideoPart) base() Base { return p.Base }

// Mode implements Part.
func (p *VideoPart) Mode() Mode { return ModeVideo }
