package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"tunedetect/pkg/logger"

	"go.uber.org/zap"
)

var commandContext = exec.CommandContext

// VideoInfo is the subset of yt-dlp's info JSON the acquirers use
type VideoInfo struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Uploader       string  `json:"uploader"`
	Duration       float64 `json:"duration"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	WebpageURL     string  `json:"webpage_url"`
}

// Size returns the exact size when known, the approximate one otherwise
func (v *VideoInfo) Size() int64 {
	if v.Filesize > 0 {
		return int64(v.Filesize)
	}
	return int64(v.FilesizeApprox)
}

// DownloadOptions control a yt-dlp download
type DownloadOptions struct {
	Format            string
	MergeOutputFormat string
	ExtractAudio      bool
	AudioFormat       string
	AudioQuality      string
	OutputTemplate    string
}

// YtDLP wraps the yt-dlp command-line downloader
type YtDLP struct {
	binary  string
	timeout time.Duration
}

func NewYtDLP(binary string, timeout time.Duration) *YtDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &YtDLP{binary: binary, timeout: timeout}
}

// Probe extracts metadata for target without downloading media. format selects
// the formats whose sizes are reported; empty uses yt-dlp's default.
func (y *YtDLP) Probe(ctx context.Context, target, format string) (*VideoInfo, []byte, error) {
	args := []string{
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", "10",
	}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, target)

	out, err := y.run(ctx, args)
	if err != nil {
		return nil, nil, fmt.Errorf("yt-dlp probe: %w", err)
	}

	info, err := ParseVideoInfo(out)
	if err != nil {
		return nil, nil, err
	}
	return info, out, nil
}

// Download fetches target with the given options
func (y *YtDLP) Download(ctx context.Context, target string, opts DownloadOptions) error {
	if opts.OutputTemplate == "" {
		return errors.New("yt-dlp download: output template required")
	}

	args := []string{
		"--no-playlist",
		"-q", "--no-warnings", "--no-progress",
		"--socket-timeout", "10",
		"--retries", "3",
		"--concurrent-fragments", "5",
		"-o", opts.OutputTemplate,
	}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", opts.MergeOutputFormat)
	}
	if opts.ExtractAudio {
		args = append(args, "-x")
		if opts.AudioFormat != "" {
			args = append(args, "--audio-format", opts.AudioFormat)
		}
		if opts.AudioQuality != "" {
			args = append(args, "--audio-quality", opts.AudioQuality)
		}
	}
	args = append(args, target)

	if _, err := y.run(ctx, args); err != nil {
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	return nil
}

// DownloadFromInfo downloads using a previously probed info JSON file, so the
// media is not looked up a second time.
func (y *YtDLP) DownloadFromInfo(ctx context.Context, infoPath string, opts DownloadOptions) error {
	return y.Download(ctx, "--load-info-json="+infoPath, opts)
}

func (y *YtDLP) run(ctx context.Context, args []string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := commandContext(runCtx, y.binary, args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running yt-dlp", zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out: %s: %w", msg, context.DeadlineExceeded)
		}
		return nil, &ToolError{Tool: "yt-dlp", Message: msg, Err: err}
	}
	return stdout.Bytes(), nil
}

// ParseVideoInfo decodes yt-dlp's --dump-single-json output. Search results
// arrive as a playlist; the first entry is returned.
func ParseVideoInfo(data []byte) (*VideoInfo, error) {
	var raw struct {
		VideoInfo
		Entries []VideoInfo `json:"entries"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp info: %w", err)
	}

	info := raw.VideoInfo
	if len(raw.Entries) > 0 {
		info = raw.Entries[0]
	}
	if info.ID == "" {
		return nil, errors.New("yt-dlp info has no id")
	}
	return &info, nil
}

// ToolError carries the stderr of a failed external tool
type ToolError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the tool said the media does not exist or is private
func (e *ToolError) NotFound() bool {
	lower := strings.ToLower(e.Message)
	for _, marker := range []string{"not found", "404", "unavailable", "private", "does not exist", "unsupported url", "no video"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
