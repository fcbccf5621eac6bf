package pipeline

import (
	"context"
	"html"
	"strings"
	"tunedetect/pkg/model"

	"go.uber.org/zap"
)

// Button is an inline URL button attached to a message
type Button struct {
	Text string
	URL  string
}

// Messenger is the chat transport. Texts are HTML. replyTo of 0 sends a plain message.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, replyTo int, text string, buttons ...Button) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendVideo(ctx context.Context, chatID int64, replyTo int, path, caption string) error
	SendAudio(ctx context.Context, chatID int64, replyTo int, path, title, performer string) error
}

const (
	statusDownloading = "⏬ Downloading media..."
	statusExtracting  = "🎧 Extracting audio..."
	statusRecognizing = "🔍 Recognizing the song..."
	statusFetching    = "🎵 Fetching the song..."
)

// statusMessage is the progress message edited in place while a request runs.
// A nil statusMessage ignores every call.
type statusMessage struct {
	messenger Messenger
	chatID    int64
	id        int
	log       *zap.Logger
}

func (o *Orchestrator) newStatus(ctx context.Context, r *run) *statusMessage {
	s := &statusMessage{messenger: o.deps.Messenger, chatID: r.req.ChatID, log: r.log}

	id, err := o.deps.Messenger.SendMessage(ctx, r.req.ChatID, r.req.MessageID, "⏳ Processing your request...")
	if err != nil {
		r.log.Warn("Failed to send status message", zap.Error(err))
		return s
	}
	s.id = id
	return s
}

func (s *statusMessage) update(ctx context.Context, text string) {
	if s == nil || s.id == 0 {
		return
	}
	if err := s.messenger.EditMessage(ctx, s.chatID, s.id, text); err != nil {
		s.log.Debug("Failed to edit status message", zap.Error(err))
	}
}

func (s *statusMessage) remove(ctx context.Context) {
	if s == nil || s.id == 0 {
		return
	}
	if err := s.messenger.DeleteMessage(ctx, s.chatID, s.id); err != nil {
		s.log.Debug("Failed to delete status message", zap.Error(err))
	}
	s.id = 0
}

// deliver sends the source video back when it came with a caption, then the
// track details with platform buttons, then the song itself.
func (o *Orchestrator) deliver(ctx context.Context, r *run, artifact *model.MediaArtifact) error {
	req := r.req
	m := o.deps.Messenger

	if artifact != nil && artifact.Kind == model.ArtifactVideo && artifact.Caption != "" {
		if err := m.SendVideo(ctx, req.ChatID, req.MessageID, artifact.LocalPath, artifact.Caption); err != nil {
			r.log.Warn("Failed to send video back", zap.Error(err))
		}
	}

	_, err := m.SendMessage(ctx, req.ChatID, req.MessageID, FormatMatch(r.match),
		Button{Text: "🎧 Spotify", URL: r.links.Spotify},
		Button{Text: "▶️ YouTube", URL: r.links.YouTube},
	)
	if err != nil {
		return err
	}

	return m.SendAudio(ctx, req.ChatID, req.MessageID, r.song.LocalPath, r.match.Title, r.match.PrimaryArtist())
}

// FormatMatch renders the match details as HTML, skipping empty fields
func FormatMatch(match *model.RecognitionMatch) string {
	var b strings.Builder
	b.WriteString("🎶 <b>Song found!</b>\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString("<b>")
		b.WriteString(label)
		b.WriteString(":</b> ")
		b.WriteString(html.EscapeString(value))
		b.WriteString("\n")
	}

	field("Title", match.Title)
	field("Artists", strings.Join(match.Artists, ", "))
	field("Album", match.Album)
	field("Genres", strings.Join(match.Genres, ", "))
	field("Release date", match.ReleaseDate)

	return strings.TrimRight(b.String(), "\n")
}
