package songs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"tunedetect/internal/media"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"

	"github.com/bogem/id3v2/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	songExt       = ".mp3"
	searchPrefix  = "ytsearch1:"
	searchFormat  = "bestaudio/best"
	stagingPrefix = ".fetch-"
)

// Downloader runs a yt-dlp style download for a target or search query
type Downloader interface {
	Download(ctx context.Context, target string, opts media.DownloadOptions) error
}

// Transcoder converts a downloaded file into an MP3
type Transcoder interface {
	Transcode(ctx context.Context, source, dest, bitrate string) error
}

// RemoteStore is an optional second cache tier shared between instances
type RemoteStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	DownloadFile(ctx context.Context, key, dest string) error
	UploadFile(ctx context.Context, key, path, contentType string) error
}

type Option func(*Fetcher)

// WithRemoteStore mirrors the song store to remote
func WithRemoteStore(remote RemoteStore) Option {
	return func(f *Fetcher) {
		f.remote = remote
	}
}

// WithBitrate sets the MP3 bitrate of fetched songs
func WithBitrate(bitrate string) Option {
	return func(f *Fetcher) {
		if bitrate != "" {
			f.bitrate = bitrate
		}
	}
}

// Fetcher obtains tagged MP3s by title and keeps them in a persistent store
// keyed by the sanitized title. Concurrent fetches of one key share a download.
type Fetcher struct {
	dir        string
	downloader Downloader
	transcoder Transcoder
	remote     RemoteStore
	bitrate    string
	group      singleflight.Group
}

func NewFetcher(dir string, downloader Downloader, transcoder Transcoder, opts ...Option) (*Fetcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create song store: %w", err)
	}

	f := &Fetcher{
		dir:        dir,
		downloader: downloader,
		transcoder: transcoder,
		bitrate:    "192k",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns where the song for key lives in the store
func (f *Fetcher) Path(key string) string {
	return filepath.Join(f.dir, key+songExt)
}

// Fetch returns the song for title, downloading it only on a cache miss.
// Failures are reported as model.ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, title, artist string) (*model.FetchedSong, error) {
	key := Sanitize(title)
	song := &model.FetchedSong{
		LocalPath: f.Path(key),
		Title:     title,
		Artist:    artist,
		Key:       key,
	}

	if fileExists(song.LocalPath) {
		logger.Debug("Song cache hit", zap.String("key", key))
		song.CacheHit = true
		return song, nil
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		if fileExists(song.LocalPath) {
			return true, nil
		}
		if f.restore(ctx, key, song.LocalPath) {
			return true, nil
		}
		return false, f.fetch(ctx, key, title, artist, song.LocalPath)
	})
	if err != nil {
		logger.Warn("Song fetch failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", model.ErrFetch, err)
	}

	song.CacheHit = v.(bool)
	return song, nil
}

// restore pulls key from the remote tier into dest
func (f *Fetcher) restore(ctx context.Context, key, dest string) bool {
	if f.remote == nil {
		return false
	}

	ok, err := f.remote.Exists(ctx, key+songExt)
	if err != nil {
		logger.Warn("Remote song lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	staging, err := os.MkdirTemp(f.dir, stagingPrefix)
	if err != nil {
		return false
	}
	defer os.RemoveAll(staging)

	tmp := filepath.Join(staging, key+songExt)
	if err := f.remote.DownloadFile(ctx, key+songExt, tmp); err != nil {
		logger.Warn("Remote song download failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := os.Rename(tmp, dest); err != nil {
		logger.Warn("Failed to store remote song", zap.String("key", key), zap.Error(err))
		return false
	}

	logger.Info("Song restored from remote store", zap.String("key", key))
	return true
}

func (f *Fetcher) fetch(ctx context.Context, key, title, artist, dest string) error {
	staging, err := os.MkdirTemp(f.dir, stagingPrefix)
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	query := strings.TrimSpace(title + " " + artist)
	err = f.downloader.Download(ctx, searchPrefix+query, media.DownloadOptions{
		Format:         searchFormat,
		OutputTemplate: filepath.Join(staging, "source.%(ext)s"),
	})
	if err != nil {
		return err
	}

	source, err := findSource(staging)
	if err != nil {
		return err
	}

	tmp := filepath.Join(staging, key+songExt)
	if err := f.transcoder.Transcode(ctx, source, tmp, f.bitrate); err != nil {
		return err
	}

	if err := Tag(tmp, title, artist); err != nil {
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to store song: %w", err)
	}

	logger.Info("Song fetched",
		zap.String("key", key),
		zap.String("artist", artist))

	f.mirror(ctx, key, dest)
	return nil
}

// mirror uploads a freshly fetched song to the remote tier; failures are only logged
func (f *Fetcher) mirror(ctx context.Context, key, path string) {
	if f.remote == nil {
		return
	}
	if err := f.remote.UploadFile(ctx, key+songExt, path, "audio/mpeg"); err != nil {
		logger.Warn("Remote song upload failed", zap.String("key", key), zap.Error(err))
	}
}

// Tag writes title and artist ID3 frames into the MP3 at path
func Tag(path, title, artist string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(title)
	tag.SetArtist(artist)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save id3 tag: %w", err)
	}
	return nil
}

func findSource(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "source.*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Size() > 0 {
			return m, nil
		}
	}
	return "", errors.New("no audio downloaded")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
