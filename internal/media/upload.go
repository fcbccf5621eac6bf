package media

import (
	"context"
	"fmt"
	"path/filepath"
	"tunedetect/pkg/model"
)

// FileDownloader retrieves a platform-hosted file by handle into dest
type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID, dest string) error
}

// UploadSource serves uploaded videos, audio files and voice messages
type UploadSource struct {
	files    FileDownloader
	maxBytes int64
}

// NewUploadSource rejects uploads larger than maxBytes before downloading; 0 disables the check
func NewUploadSource(files FileDownloader, maxBytes int64) *UploadSource {
	return &UploadSource{files: files, maxBytes: maxBytes}
}

func (s *UploadSource) Fetch(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error) {
	if in.FileID == "" {
		return nil, fmt.Errorf("%w: missing file handle", model.ErrInput)
	}

	kind, ext := model.ArtifactAudio, ".ogg"
	switch in.Kind {
	case model.InputUploadedVideo:
		kind, ext = model.ArtifactVideo, ".mp4"
	case model.InputUploadedAudio:
		ext = audioExtension(in.MIME)
	case model.InputVoice:
	default:
		return nil, fmt.Errorf("%w: %s is not an upload", model.ErrInput, in.Kind)
	}

	if s.maxBytes > 0 && in.FileSize > s.maxBytes {
		return nil, fmt.Errorf("%w: upload of %d bytes > %d bytes", model.ErrSizeExceeded, in.FileSize, s.maxBytes)
	}

	dest := filepath.Join(dir, "upload"+ext)
	if err := s.files.DownloadFile(ctx, in.FileID, dest); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	return &model.MediaArtifact{LocalPath: dest, Kind: kind}, nil
}

func audioExtension(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a", "audio/aac":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".ogg"
	}
}
