package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStr(t *testing.T) {
	t.Setenv("TUTOR_TEST_STR", "")
	assert.Equal(t, "fallback", Str("TUTOR_TEST_STR", "fallback"))

	t.Setenv("TUTOR_TEST_STR", "  ")
	assert.Equal(t, "fallback", Str("TUTOR_TEST_STR", "fallback"))

	t.Setenv("TUTOR_TEST_STR", "value")
	assert.Equal(t, "value", Str("TUTOR_TEST_STR", "fallback"))
}

func TestInt_Malformed(t *testing.T) {
	t.Setenv("TUTOR_TEST_INT", "twelve")
	assert.Equal(t, 7, Int("TUTOR_TEST_INT", 7))

	t.Setenv("TUTOR_TEST_INT", "12")
	assert.Equal(t, 12, Int("TUTOR_TEST_INT", 7))
}

func TestDurationAndFloat(t *testing.T) {
	t.Setenv("TUTOR_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, Duration("TUTOR_TEST_DUR", time.Minute))

	t.Setenv("TUTOR_TEST_DUR", "soon")
	assert.Equal(t, time.Minute, Duration("TUTOR_TEST_DUR", time.Minute))

	t.Setenv("TUTOR_TEST_FLOAT", "0.25")
	assert.InDelta(t, 0.25, Float("TUTOR_TEST_FLOAT", 1), 1e-9)
}
