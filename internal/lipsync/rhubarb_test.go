package lipsync

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeRhubarb = `#!/bin/sh
while [ $# -gt 1 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
echo '{"metadata":{"duration":1},"mouthCues":[{"start":0,"end":0.5,"value":"B"},{"start":0.5,"end":1,"value":"X"}]}' > "$out"
`

const fakeFFmpeg = `#!/bin/sh
for a; do last="$a"; done
: > "$last"
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
	return p
}

func TestRhubarbLeavesOnlyAudioInPlace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for the binaries")
	}
	bin := t.TempDir()
	r := NewRhubarb(writeScript(t, bin, "rhubarb", fakeRhubarb), writeScript(t, bin, "ffmpeg", fakeFFmpeg), "")

	for _, name := range []string{"s1_part_1.wav", "s1_part_2.mp3"} {
		t.Run(name, func(t *testing.T) {
			audioDir := t.TempDir()
			audioPath := filepath.Join(audioDir, name)
			require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0o644))

			track, err := r.Extract(context.Background(), audioPath, "Hello there.")
			require.NoError(t, err)
			require.Len(t, track.MouthCues, 2)
			assert.Equal(t, audioPath, track.Metadata.SoundFile)

			entries, err := os.ReadDir(audioDir)
			require.NoError(t, err)
			require.Len(t, entries, 1, "no rhubarb output or transcode left in the audio dir")
			assert.Equal(t, name, entries[0].Name())
		})
	}
}
