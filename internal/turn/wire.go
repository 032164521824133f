package turn

import (
	"encoding/base64"

	"github.com/pankajydv07/ai-tutor/gateway/internal/lipsync"
)

// Message is one part as sent to the browser.
type Message struct {
	Text              string          `json:"text"`
	FacialExpression  Expression      `json:"facialExpression"`
	Animation         Animation       `json:"animation"`
	Mode              Mode            `json:"mode"`
	PartIndex         int             `json:"partIndex"`
	PartCount         int             `json:"partCount"`
	Audio             string          `json:"audio,omitempty"`
	AudioURL          string          `json:"audioUrl,omitempty"`
	LipSync           *lipsync.Track  `json:"lipsync,omitempty"`
	AnimationTimeline []TimelineEntry `json:"animationTimeline,omitempty"`

	// Video parts only.
	Narration          string `json:"narration,omitempty"`
	SceneScript        string `json:"manimCode,omitempty"`
	PartAudioURL       string `json:"partAudioUrl,omitempty"`
	NarrationAudioFile string `json:"narrationAudioFile,omitempty"`
	SessionID          string `json:"sessionId,omitempty"`
}

// Response is the body of a chat reply.
type Response struct {
	Messages        []Message `json:"messages"`
	SessionID       string    `json:"sessionId"`
	VideoGenerating bool      `json:"videoGenerating"`
}

// Response renders the result for the wire. Plain parts carry their audio
// inline; video parts reference the combined narration by URL.
func (r *Result) Response() Response {
	out := Response{
		Messages:        make([]Message, len(r.Parts)),
		SessionID:       r.SessionID,
		VideoGenerating: r.VideoGenerating,
	}
	for i, part := range r.Parts {
		b := part.base()
		m := Message{
			Text:             b.Text,
			FacialExpression: b.Expression,
			Animation:        b.Animation,
			Mode:             part.Mode(),
			PartIndex:        i,
			PartCount:        len(r.Parts),
		}
		switch pt := part.(type) {
		case *PlainPart:
			m.AnimationTimeline = pt.Timeline
			if pt.Audio != nil {
				m.Audio = base64.StdEncoding.EncodeToString(pt.Audio.Audio)
				m.AudioURL = pt.Audio.AudioURL
				m.LipSync = pt.Audio.LipSync
			}
		case *VideoPart:
			m.Narration = pt.Narration
			m.SceneScript = pt.SceneScript
			m.SessionID = r.SessionID
			if pt.PartAudio != nil {
				m.PartAudioURL = pt.PartAudio.AudioURL
			}
			if pt.Combined != nil {
				m.AudioURL = pt.Combined.AudioURL
				m.LipSync = pt.Combined.LipSync
				m.NarrationAudioFile = pt.Combined.AudioPath
			}
		}
		out.Messages[i] = m
	}
	return out
}
