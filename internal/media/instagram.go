package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"tunedetect/pkg/model"
)

// InstagramSource fetches reels and posts. Posts yt-dlp reports as missing or
// private are an input error; any other probe failure means the source is
// unavailable.
type InstagramSource struct {
	tool VideoTool
}

func NewInstagramSource(tool VideoTool) *InstagramSource {
	return &InstagramSource{tool: tool}
}

func (s *InstagramSource) Fetch(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error) {
	info, raw, err := s.tool.Probe(ctx, in.URL, "")
	if err != nil {
		return nil, classifyToolError(err)
	}

	infoPath := filepath.Join(dir, info.ID+".info.json")
	if err := os.WriteFile(infoPath, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write post info: %w", err)
	}

	err = s.tool.DownloadFromInfo(ctx, infoPath, DownloadOptions{
		Format:            "best[ext=mp4]/best",
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

	return &model.MediaArtifact{
		LocalPath: path,
		Kind:      model.ArtifactVideo,
		Caption:   FirstLine(info.Description),
	}, nil
}
