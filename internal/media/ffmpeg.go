package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"

	"go.uber.org/zap"
)

// FFmpeg wraps the ffmpeg binary for audio extraction and transcoding
type FFmpeg struct {
	binary string
}

func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// ExtractAudio strips the audio track of source into a stereo MP3 at dest
func (f *FFmpeg) ExtractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "2",
		"-ar", "44100",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		dest,
	}
	return f.run(ctx, "ffmpeg extract", args, dest)
}

// Transcode converts source into an MP3 at the given bitrate
func (f *FFmpeg) Transcode(ctx context.Context, source, dest, bitrate string) error {
	if bitrate == "" {
		bitrate = "192k"
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-ar", "44100",
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		dest,
	}
	return f.run(ctx, "ffmpeg transcode", args, dest)
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string, dest string) error {
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", op, err, strings.TrimSpace(string(output)))
	}
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("%s: no output: %w", op, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s: empty output %s", op, dest)
	}
	return nil
}

// AudioExtractor is the transcoder capability the normalizer needs
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source, dest string) error
}

// Normalizer turns an artifact into an audio sample for fingerprinting
type Normalizer struct {
	extractor AudioExtractor
}

func NewNormalizer(extractor AudioExtractor) *Normalizer {
	return &Normalizer{extractor: extractor}
}

// ToAudioSample returns audio artifacts unchanged and extracts the track of
// video artifacts into dir.
func (n *Normalizer) ToAudioSample(ctx context.Context, artifact *model.MediaArtifact, dir string) (string, error) {
	if artifact == nil {
		return "", errors.New("normalize: nil artifact")
	}
	if artifact.Kind == model.ArtifactAudio {
		return artifact.LocalPath, nil
	}

	base := strings.TrimSuffix(filepath.Base(artifact.LocalPath), filepath.Ext(artifact.LocalPath))
	dest := filepath.Join(dir, base+".sample.mp3")

	if err := n.extractor.ExtractAudio(ctx, artifact.LocalPath, dest); err != nil {
		logger.Warn("Audio extraction failed",
			zap.String("source", artifact.LocalPath),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("%w: no output file: %w", model.ErrExtraction, err)
	}

	return dest, nil
}
