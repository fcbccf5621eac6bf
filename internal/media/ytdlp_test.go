package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYtDLP_Probe(t *testing.T) {
	calls := stubCommands(t, "probe")
	y := NewYtDLP("/usr/bin/yt-dlp", time.Minute)

	info, raw, err := y.Probe(context.Background(), "https://youtu.be/abc123", "best")
	require.NoError(t, err)

	assert.Equal(t, "abc123", info.ID)
	assert.Equal(t, int64(31457280), info.Size())
	assert.NotEmpty(t, raw)

	require.Len(t, *calls, 1)
	args := (*calls)[0]
	assert.Equal(t, "/usr/bin/yt-dlp", args[0])
	assert.NotEqual(t, -1, findArg(args, "--dump-single-json"))
	assert.Equal(t, "https://youtu.be/abc123", args[len(args)-1])
}

func TestYtDLP_ProbeFailureIsToolError(t *testing.T) {
	stubCommands(t, "notfound")
	y := NewYtDLP("", time.Minute)

	_, _, err := y.Probe(context.Background(), "https://youtu.be/abc123", "")
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.True(t, toolErr.NotFound())
	assert.Contains(t, toolErr.Message, "Video unavailable")
}

func TestYtDLP_DownloadRequiresTemplate(t *testing.T) {
	y := NewYtDLP("", time.Minute)
	err := y.Download(context.Background(), "https://youtu.be/abc123", DownloadOptions{})
	assert.Error(t, err)
}

func TestYtDLP_DownloadArgs(t *testing.T) {
	calls := stubCommands(t, "silent")
	y := NewYtDLP("", time.Minute)

	err := y.Download(context.Background(), "ytsearch1:Song X Artist Y", DownloadOptions{
		Format:         "bestaudio",
		ExtractAudio:   true,
		AudioFormat:    "mp3",
		OutputTemplate: "/tmp/out.%(ext)s",
	})
	require.NoError(t, err)

	args := (*calls)[0]
	assert.NotEqual(t, -1, findArg(args, "-x"))
	assert.Equal(t, "mp3", args[findArg(args, "--audio-format")+1])
	assert.Equal(t, "bestaudio", args[findArg(args, "-f")+1])
	assert.Equal(t, "ytsearch1:Song X Artist Y", args[len(args)-1])
}

func TestParseVideoInfo_SearchPlaylist(t *testing.T) {
	info, err := ParseVideoInfo([]byte(`{"id":"ytsearch1:q","entries":[{"id":"vid1","title":"T"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "vid1", info.ID)
}

func TestParseVideoInfo_Invalid(t *testing.T) {
	_, err := ParseVideoInfo([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseVideoInfo([]byte(`{"title":"no id"}`))
	assert.Error(t, err)
}

func TestVideoInfo_SizePrefersExact(t *testing.T) {
	info := VideoInfo{Filesize: 10, FilesizeApprox: 20}
	assert.Equal(t, int64(10), info.Size())
}
