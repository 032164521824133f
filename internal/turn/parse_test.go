package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"well formed", `{"messages":[]}`, `{"messages":[]}`},
		{"open brace", `{"messages":[{"text":"hi"}`, `{"messages":[{"text":"hi"}]}`},
		{"open string", `{"messages":[{"text":"hel`, `{"messages":[{"text":"hel"}]}`},
		{"dangling comma", `{"messages":[{"text":"a"},`, `{"messages":[{"text":"a"}]}`},
		{"dangling colon", `{"messages":[{"text":`, `{"messages":[{"text":null}]}`},
		{"brace inside string", `{"messages":[{"text":"a { b`, `{"messages":[{"text":"a { b"}]}`},
		{"half key cut back", `{"messages":[{"text":"a"},{"tex`, `{"messages":[{"text":"a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repair(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, gjson.Valid(got))
		})
	}
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
	}{
		{"messages object", `{"messages":[{"text":"a"},{"text":"b"}]}`, 2},
		{"bare array", `[{"text":"a"}]`, 1},
		{"single object", `{"text":"a","facialExpression":"smile"}`, 1},
		{"fenced", "```json\n{\"messages\":[{\"text\":\"a\"}]}\n```", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := parse(tt.in, false)
			require.NoError(t, err)
			assert.Len(t, msgs, tt.n)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := parse(`{"messages":[{"text":"a"`, false)
	assert.ErrorIs(t, err, ErrUnparseable)

	_, err = parse(`{"answer":"no messages"}`, false)
	assert.ErrorIs(t, err, ErrUnparseable)

	msgs, err := parse(`{"messages":[{"text":"a"`, true)
	require.NoError(t, err)
	assert.Equal(t, "a", msgs[0].Text)
}

func TestValidatePlain(t *testing.T) {
	msgs, err := parse(`{"messages":[
		{"text":"Hi!","facialExpression":"smile","animation":"Talking_1",
		 "animationTimeline":[{"time":1.5,"animation":"Laughing","facialExpression":"funnyFace"}]},
		{"text":"Bye."}]}`, false)
	require.NoError(t, err)

	parts, err := validate(msgs, ModePlain)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	first := parts[0].(*PlainPart)
	assert.Equal(t, ExpressionSmile, first.Expression)
	assert.Equal(t, AnimationTalking1, first.Animation)
	require.Len(t, first.Timeline, 1)
	assert.Equal(t, AnimationLaughing, first.Timeline[0].Animation)

	second := parts[1].(*PlainPart)
	assert.Equal(t, ExpressionDefault, second.Expression)
	assert.Equal(t, AnimationTalking0, second.Animation)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		msgs []rawMessage
		mode Mode
	}{
		{"empty", nil, ModePlain},
		{"too many", make([]rawMessage, 6), ModeVideo},
		{"no text in plain mode", []rawMessage{{Text: " "}}, ModePlain},
		{"unknown expression", []rawMessage{{Text: "a", FacialExpression: "happy"}}, ModePlain},
		{"unknown animation", []rawMessage{{Text: "a", Animation: "Dance"}}, ModePlain},
		{"bad timeline", []rawMessage{{Text: "a", AnimationTimeline: []TimelineEntry{{Time: 1, Animation: "Dance"}}}}, ModePlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validate(tt.msgs, tt.mode)
			assert.ErrorIs(t, err, ErrInvalidPart)
		})
	}
}

func TestValidateVideo(t *testing.T) {
	msgs := []rawMessage{
		{Narration: "A circle is round.", SceneScript: "class GenScene(Scene): pass"},
		{Text: "no script"},
		{Text: "Squares", SceneScript: "class GenScene(Scene): pass"},
	}
	parts, err := validate(msgs, ModeVideo)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	first := parts[0].(*VideoPart)
	assert.Equal(t, "Part 1 of video explanation", first.Text)
	assert.Equal(t, "A circle is round.", first.Narration)
	assert.Equal(t, 0, first.Index)

	second := parts[1].(*VideoPart)
	assert.Equal(t, "Squares", second.Narration, "narration defaults to text")
	assert.Equal(t, 1, second.Index)
}

func TestValidateVideoNoScripts(t *testing.T) {
	_, err := validate([]rawMessage{{Text: "a"}}, ModeVideo)
	assert.ErrorIs(t, err, ErrMissingSceneScript)
}

func TestCannedPartsAreValid(t *testing.T) {
	for name, parts := range map[string][]Part{
		"greeting":    greetingParts(),
		"credentials": missingCredentialsParts(),
		"apology":     apologyParts(),
		"video":       technicalDifficultyParts(),
	} {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, parts)
			require.LessOrEqual(t, len(parts), MaxParts)
			for _, p := range parts {
				b := p.base()
				assert.NotEmpty(t, b.Text)
				assert.True(t, b.Expression.Valid())
				assert.True(t, b.Animation.Valid())
				if vp, ok := p.(*VideoPart); ok {
					assert.NotEmpty(t, vp.SceneScript)
					assert.NotEmpty(t, vp.Narration)
				}
			}
		})
	}
}

func TestParsePartsKeepsCompletePartsBeforeCutValue(t *testing.T) {
	text := `{"messages":[{"text":"A","facialExpression":"smile","animation":"Talking_1"},` +
		`{"text":"B","facialExpression":"sad","animation":"Tal`

	_, err := validate(mustParse(t, text), ModePlain)
	require.ErrorIs(t, err, ErrInvalidPart, "closing alone keeps the cut enum value")

	parts, err := parseParts(text, true, ModePlain)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "A", parts[0].(*PlainPart).Text)

	_, err = parseParts(text, false, ModePlain)
	assert.ErrorIs(t, err, ErrUnparseable, "untruncated output is never repaired")
}

func TestParsePartsReportsFirstError(t *testing.T) {
	_, err := parseParts(`{"messages":[{"text":"A","animation":"Dance"}`, true, ModePlain)
	assert.ErrorIs(t, err, ErrInvalidPart)
}

func mustParse(t *testing.T, text string) []rawMessage {
	t.Helper()
	msgs, err := parse(text, true)
	require.NoError(t, err)
	return msgs
}
