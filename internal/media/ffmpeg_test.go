package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"tunedetect/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractAudio(ctx context.Context, source, dest string) error {
	args := m.Called(ctx, source, dest)
	return args.Error(0)
}

func TestFFmpeg_ExtractAudio(t *testing.T) {
	calls := stubCommands(t, "write-last")
	dest := filepath.Join(t.TempDir(), "out.mp3")

	err := NewFFmpeg("").ExtractAudio(context.Background(), "/in/video.mp4", dest)
	require.NoError(t, err)

	args := (*calls)[0]
	assert.Equal(t, "ffmpeg", args[0])
	assert.NotEqual(t, -1, findArg(args, "-vn"))
	assert.Equal(t, "/in/video.mp4", args[findArg(args, "-i")+1])
	assert.FileExists(t, dest)
}

func TestFFmpeg_NonZeroExit(t *testing.T) {
	stubCommands(t, "fail")
	err := NewFFmpeg("").Transcode(context.Background(), "/in/a.webm", filepath.Join(t.TempDir(), "a.mp3"), "192k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpeg_NoOutputFile(t *testing.T) {
	stubCommands(t, "silent")
	err := NewFFmpeg("").ExtractAudio(context.Background(), "/in/video.mp4", filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output")
}

func TestFFmpeg_TranscodeBitrate(t *testing.T) {
	calls := stubCommands(t, "write-last")
	dest := filepath.Join(t.TempDir(), "song.mp3")

	require.NoError(t, NewFFmpeg("").Transcode(context.Background(), "/in/a.webm", dest, "320k"))

	args := (*calls)[0]
	assert.Equal(t, "320k", args[findArg(args, "-b:a")+1])
}

func TestNormalizer_AudioPassThrough(t *testing.T) {
	ext := new(MockExtractor)
	n := NewNormalizer(ext)

	path, err := n.ToAudioSample(context.Background(), &model.MediaArtifact{LocalPath: "/w/voice.ogg", Kind: model.ArtifactAudio}, "/w")

	require.NoError(t, err)
	assert.Equal(t, "/w/voice.ogg", path)
	ext.AssertNotCalled(t, "ExtractAudio", mock.Anything, mock.Anything, mock.Anything)
}

func TestNormalizer_ExtractsVideo(t *testing.T) {
	stubCommands(t, "write-last")
	dir := t.TempDir()
	n := NewNormalizer(NewFFmpeg(""))

	path, err := n.ToAudioSample(context.Background(), &model.MediaArtifact{LocalPath: filepath.Join(dir, "abc123.mp4"), Kind: model.ArtifactVideo}, dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc123.sample.mp3"), path)
	assert.FileExists(t, path)
}

func TestNormalizer_ExtractionError(t *testing.T) {
	ext := new(MockExtractor)
	ext.On("ExtractAudio", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("exit status 1"))

	_, err := NewNormalizer(ext).ToAudioSample(context.Background(), &model.MediaArtifact{LocalPath: "/w/v.mp4", Kind: model.ArtifactVideo}, t.TempDir())
	assert.ErrorIs(t, err, model.ErrExtraction)
}

func TestNormalizer_MissingOutput(t *testing.T) {
	ext := new(MockExtractor)
	ext.On("ExtractAudio", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := NewNormalizer(ext).ToAudioSample(context.Background(), &model.MediaArtifact{LocalPath: "/w/v.mp4", Kind: model.ArtifactVideo}, t.TempDir())
	assert.ErrorIs(t, err, model.ErrExtraction)
}
