package turn

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnparseable means the model output could not be read as JSON even
	// after repair.
	ErrUnparseable = errors.New("unparseable model output")
	// ErrInvalidPart means a decoded part broke a structural rule.
	ErrInvalidPart = errors.New("invalid part")
	// ErrMissingSceneScript means a video part came back without a script.
	ErrMissingSceneScript = errors.New("missing scene script")
)

// rawMessage is one part as the model writes it.
type rawMessage struct {
	Text              string          `json:"text"`
	Narration         string          `json:"narration"`
	FacialExpression  string          `json:"facialExpression"`
	Animation         string          `json:"animation"`
	SceneScript       string          `json:"manimCode"`
	AnimationTimeline []TimelineEntry `json:"animationTimeline"`
}

// Repair closes whatever a truncated JSON document left open: an unterminated
// string, a dangling comma or colon, and any unbalanced braces or brackets.
// When closing alone does not yield valid JSON the text is cut back to the
// last complete object or array and closed again. Well-formed input is
// returned unchanged.
func Repair(text string) string {
	if candidates := repairCandidates(text); len(candidates) > 0 {
		return candidates[0]
	}
	closed, _ := closeOpen(strings.TrimSpace(text))
	return closed
}

// repairCandidates lists every valid repair of text, longest first: the
// closed document, then each cut back to an earlier complete value.
func repairCandidates(text string) []string {
	text = strings.TrimSpace(text)
	if gjson.Valid(text) {
		return []string{text}
	}
	var out []string
	add := func(s string) {
		if gjson.Valid(s) && (len(out) == 0 || out[len(out)-1] != s) {
			out = append(out, s)
		}
	}
	closed, cuts := closeOpen(text)
	add(closed)
	for i := len(cuts) - 1; i >= 0; i-- {
		candidate, _ := closeOpen(text[:cuts[i]+1])
		add(candidate)
	}
	return out
}

// closeOpen appends the closers text is missing and reports the offsets of
// every '}' or ']' seen outside a string.
func closeOpen(text string) (string, []int) {
	var (
		stack    []byte
		cuts     []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
			cuts = append(cuts, i)
		}
	}

	out := text
	if inString {
		if escaped {
			out += "\\"
		}
		out += `"`
	}
	out = strings.TrimRight(out, " \t\r\n")
	switch {
	case strings.HasSuffix(out, ","):
		out = strings.TrimSuffix(out, ",")
	case strings.HasSuffix(out, ":"):
		out += "null"
	}
	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), cuts
}

// decode extracts the part list from either {"messages":[...]}, a bare
// array, or a single part object.
func decode(text string) ([]rawMessage, error) {
	text = stripFence(text)
	if !gjson.Valid(text) {
		return nil, ErrUnparseable
	}
	res := gjson.Parse(text)

	var raw string
	switch {
	case res.IsArray():
		raw = res.Raw
	case res.Get("messages").IsArray():
		raw = res.Get("messages").Raw
	case res.IsObject() && res.Get("text").Exists():
		raw = "[" + res.Raw + "]"
	default:
		return nil, fmt.Errorf("%w: no messages array", ErrUnparseable)
	}

	var msgs []rawMessage
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return msgs, nil
}

// stripFence drops a markdown code fence some models wrap JSON in.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// parse reads model output into raw parts, repairing it first when the
// provider reported truncation.
func parse(text string, truncated bool) ([]rawMessage, error) {
	text = stripFence(text)
	if truncated {
		text = Repair(text)
	}
	return decode(text)
}

// parseParts reads and validates model output. Truncated output is tried
// against each repair candidate in turn, so a part cut off inside a value
// costs only that part and not the ones before it.
func parseParts(text string, truncated bool, mode Mode) ([]Part, error) {
	if !truncated {
		msgs, err := parse(text, false)
		if err != nil {
			return nil, err
		}
		return validate(msgs, mode)
	}

	candidates := repairCandidates(stripFence(text))
	if len(candidates) == 0 {
		return nil, ErrUnparseable
	}
	var firstErr error
	for _, c := range candidates {
		msgs, err := decode(c)
		if err == nil {
			var parts []Part
			if parts, err = validate(msgs, mode); err == nil {
				return parts, nil
			}
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// validate turns raw parts into typed parts for mode. Missing expression and
// animation fall back to defaults; out-of-set values are rejected. Video parts
// without a scene script are dropped, and a video turn left with none fails
// with ErrMissingSceneScript.
func validate(msgs []rawMessage, mode Mode) ([]Part, error) {
	if len(msgs) == 0 || len(msgs) > MaxParts {
		return nil, fmt.Errorf("%w: %d parts", ErrInvalidPart, len(msgs))
	}

	parts := make([]Part, 0, len(msgs))
	for i, m := range msgs {
		base, err := validateBase(m, mode, i)
		if err != nil {
			return nil, err
		}
		if mode == ModePlain {
			timeline, err := validateTimeline(m.AnimationTimeline, i)
			if err != nil {
				return nil, err
			}
			parts = append(parts, &PlainPart{Base: base, Timeline: timeline})
			continue
		}

		script := strings.TrimSpace(m.SceneScript)
		if script == "" {
			slog.Warn("dropping video part without scene script", "part", i+1)
			continue
		}
		narration := strings.TrimSpace(m.Narration)
		if narration == "" {
			narration = base.Text
		}
		parts = append(parts, &VideoPart{
			Base:        base,
			Index:       len(parts),
			Narration:   narration,
			SceneScript: script,
		})
	}
	if len(parts) == 0 {
		return nil, ErrMissingSceneScript
	}
	return parts, nil
}

func validateBase(m rawMessage, mode Mode, i int) (Base, error) {
	b := Base{
		Text:       strings.TrimSpace(m.Text),
		Expression: Expression(m.FacialExpression),
		Animation:  Animation(m.Animation),
	}
	if b.Text == "" {
		if mode != ModeVideo {
			return b, fmt.Errorf("%w: part %d has no text", ErrInvalidPart, i+1)
		}
		b.Text = fmt.Sprintf("Part %d of video explanation", i+1)
	}
	if b.Expression == "" {
		b.Expression = ExpressionDefault
	}
	if b.Animation == "" {
		b.Animation = AnimationTalking0
	}
	if !b.Expression.Valid() {
		return b, fmt.Errorf("%w: part %d expression %q", ErrInvalidPart, i+1, b.Expression)
	}
	if !b.Animation.Valid() {
		return b, fmt.Errorf("%w: part %d animation %q", ErrInvalidPart, i+1, b.Animation)
	}
	return b, nil
}

func validateTimeline(entries []TimelineEntry, i int) ([]TimelineEntry, error) {
	for _, e := range entries {
		if e.Time < 0 {
			return nil, fmt.Errorf("%w: part %d timeline time %.2f", ErrInvalidPart, i+1, e.Time)
		}
		if e.Expression != "" && !e.Expression.Valid() {
			return nil, fmt.Errorf("%w: part %d timeline expression %q", ErrInvalidPart, i+1, e.Expression)
		}
		if e.Animation != "" && !e.Animation.Valid() {
			return nil, fmt.Errorf("%w: part %d timeline animation %q", ErrInvalidPart, i+1, e.Animation)
		}
	}
	return entries, nil
}
