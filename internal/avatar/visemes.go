package avatar

import (
	"math"

	"github.com/pankajydv07/ai-tutor/gateway/internal/lipsync"
)

// Morph targets on the avatar model driven by lip-sync.
const (
	VisemePP = "viseme_PP"
	VisemeKK = "viseme_kk"
	VisemeI  = "viseme_I"
	VisemeAA = "viseme_AA"
	VisemeO  = "viseme_O"
	VisemeU  = "viseme_U"
	VisemeFF = "viseme_FF"
	VisemeTH = "viseme_TH"
)

// Targets lists every morph target in a stable order.
var Targets = []string{VisemePP, VisemeKK, VisemeI, VisemeAA, VisemeO, VisemeU, VisemeFF, VisemeTH}

var shapeTargets = map[lipsync.Shape]string{
	lipsync.ShapeA: VisemePP,
	lipsync.ShapeB: VisemeKK,
	lipsync.ShapeC: VisemeI,
	lipsync.ShapeD: VisemeAA,
	lipsync.ShapeE: VisemeO,
	lipsync.ShapeF: VisemeU,
	lipsync.ShapeG: VisemeFF,
	lipsync.ShapeH: VisemeTH,
	lipsync.ShapeX: VisemePP,
}

// TargetFor maps a mouth shape to its morph target.
func TargetFor(s lipsync.Shape) (string, bool) {
	t, ok := shapeTargets[s]
	return t, ok
}

// Weights holds the current influence of each morph target in [0,1].
type Weights map[string]float64

func newWeights() Weights {
	w := make(Weights, len(Targets))
	for _, t := range Targets {
		w[t] = 0
	}
	return w
}

// step moves every target toward 1 if it is active, 0 otherwise. The blend
// factor 1-exp(-rate*dt) is frame-rate independent and never overshoots.
func (w Weights) step(active string, rate, dt float64) {
	if dt <= 0 {
		return
	}
	k := 1 - math.Exp(-rate*dt)
	for _, t := range Targets {
		goal := 0.0
		if t == active {
			goal = 1
		}
		w[t] += (goal - w[t]) * k
		if goal == 0 && w[t] < 1e-4 {
			w[t] = 0
		}
	}
}

func (w Weights) clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
