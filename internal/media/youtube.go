package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"

	"go.uber.org/zap"
)

// VideoTool is the part of yt-dlp the URL sources need
type VideoTool interface {
	Probe(ctx context.Context, target, format string) (*VideoInfo, []byte, error)
	DownloadFromInfo(ctx context.Context, infoPath string, opts DownloadOptions) error
}

// YouTubeSource probes size before downloading and caps resolution
type YouTubeSource struct {
	tool      VideoTool
	maxBytes  int64
	maxHeight int
}

func NewYouTubeSource(tool VideoTool, maxBytes int64, maxHeight int) *YouTubeSource {
	if maxHeight <= 0 {
		maxHeight = 360
	}
	return &YouTubeSource{tool: tool, maxBytes: maxBytes, maxHeight: maxHeight}
}

func (s *YouTubeSource) format() string {
	return fmt.Sprintf("bestvideo[height<=%[1]d][ext=mp4]+bestaudio/best[height<=%[1]d][ext=mp4]/best[height<=%[1]d]", s.maxHeight)
}

func (s *YouTubeSource) Fetch(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error) {
	info, raw, err := s.tool.Probe(ctx, in.URL, s.format())
	if err != nil {
		return nil, classifyToolError(err)
	}

	if size := info.Size(); s.maxBytes > 0 && size > s.maxBytes {
		logger.Warn("Video exceeds size ceiling",
			zap.String("video_id", info.ID),
			zap.Int64("size", size),
			zap.Int64("max", s.maxBytes))
		return nil, fmt.Errorf("%w: %d bytes > %d bytes", model.ErrSizeExceeded, size, s.maxBytes)
	}

	infoPath := filepath.Join(dir, info.ID+".info.json")
	if err := os.WriteFile(infoPath, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write video info: %w", err)
	}

	err = s.tool.DownloadFromInfo(ctx, infoPath, DownloadOptions{
		Format:            s.format(),
		MergeOutputFormat: "mp4",
		OutputTemplate:    filepath.Join(dir, "%(id)s.%(ext)s"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	path, err := findDownloaded(dir, info.ID, ".mp4")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	return &model.MediaArtifact{LocalPath: path, Kind: model.ArtifactVideo, Caption: FirstLine(info.Description)}, nil
}

// classifyToolError maps a failed probe to InputError when the media cannot be
// located and to SourceUnavailable otherwise.
func classifyToolError(err error) error {
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.NotFound() {
		return fmt.Errorf("%w: %w", model.ErrInput, err)
	}
	return fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
}

// findDownloaded locates the file yt-dlp produced for id, preferring ext
func findDownloaded(dir, id, ext string) (string, error) {
	preferred := filepath.Join(dir, id+ext)
	if _, err := os.Stat(preferred); err == nil {
		return preferred, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if filepath.Ext(m) == ".json" || filepath.Ext(m) == ".part" {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("no downloaded file for %s in %s", id, dir)
}
