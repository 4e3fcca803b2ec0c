package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaFiles(t *testing.T) {
	video, audio := flagVideoFile, flagAudioFile
	t.Cleanup(func() { flagVideoFile, flagAudioFile = video, audio })

	flagVideoFile, flagAudioFile = "cam.ivf", "mic.ogg"
	require.Equal(t, "cam.ivf and mic.ogg", mediaFiles())

	flagVideoFile, flagAudioFile = "cam.ivf", ""
	require.Equal(t, "cam.ivf", mediaFiles())

	flagVideoFile, flagAudioFile = "", "mic.ogg"
	require.Equal(t, "mic.ogg", mediaFiles())
}
