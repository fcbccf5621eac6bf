package bot

import (
	"strings"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

const (
	startText = "🎵 <b>Hello there!</b> I'm your personal music detective. 🎶\n\n" +
		"✨ Send me a <b>YouTube</b> or <b>Instagram</b> link, upload a <b>video</b> or an <b>audio file</b>, " +
		"or record a <b>voice message</b>, and I'll identify the song for you! 🚀"

	searchUsage = "🔎 Usage: <code>/search &lt;song name&gt;, &lt;artist name&gt;</code>"
)

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(startText, tele.ModeHTML)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(b.helpText(), tele.ModeHTML, tele.NoPreview)
}

func (b *Bot) helpText() string {
	var sb strings.Builder
	sb.WriteString("🔊 <b>Song Recognition Bot Help</b>\n\n")
	sb.WriteString("/start - welcome message\n")
	sb.WriteString("/help - this message\n")
	sb.WriteString("/search &lt;song name&gt;, &lt;artist name&gt; - find a song by name\n\n")
	sb.WriteString("Share a video, an audio file or a voice message and I'll recognize the song.\n")
	sb.WriteString("Send a YouTube or Instagram link and I'll download the video and identify its music.")
	if b.groupLink != "" || b.chanLink != "" {
		sb.WriteString("\n\nTo use the bot, join ")
		var links []string
		if b.groupLink != "" {
			links = append(links, `<a href="`+b.groupLink+`">our group</a>`)
		}
		if b.chanLink != "" {
			links = append(links, `<a href="`+b.chanLink+`">our channel</a>`)
		}
		sb.WriteString(strings.Join(links, " and "))
		sb.WriteString(".")
	}
	return sb.String()
}

func (b *Bot) handleSearch(c tele.Context) error {
	msg := c.Message()
	in := model.ParseSearchQuery(msg.Payload)
	if in.Kind == model.InputUnsupported {
		return c.Reply(searchUsage, tele.ModeHTML)
	}
	return b.dispatch(msg, in)
}

// handleText accepts links anywhere; other text is only answered in private chats
func (b *Bot) handleText(c tele.Context) error {
	msg := c.Message()
	in := model.ParseTextInput(msg.Text)
	if in.Kind == model.InputUnsupported && !msg.Private() {
		return nil
	}
	return b.dispatch(msg, in)
}

func (b *Bot) handleMedia(c tele.Context) error {
	msg := c.Message()
	in, ok := inputFromMessage(msg)
	if !ok && !msg.Private() {
		return nil
	}
	return b.dispatch(msg, in)
}

// dispatch runs the request on the handler's goroutine; telebot runs each
// update concurrently, so slow requests don't hold up other users.
func (b *Bot) dispatch(msg *tele.Message, in model.Input) error {
	if msg == nil || msg.Sender == nil {
		return nil
	}

	if !b.track() {
		logger.Debug("Bot stopping, update dropped", zap.Int64("user_id", msg.Sender.ID))
		return nil
	}
	defer b.wg.Done()

	req := b.newRequest(msg, in)
	logger.Info("Request accepted",
		zap.String("request_id", req.ID),
		zap.Int64("user_id", req.RequesterID),
		zap.Int64("chat_id", req.ChatID),
		zap.String("input_kind", string(in.Kind)))

	res := b.processor.Process(b.ctx, req)

	logger.Debug("Request finished",
		zap.String("request_id", req.ID),
		zap.String("state", string(res.State)),
		zap.String("reason", string(res.Reason)),
		zap.Duration("duration", res.Duration))

	return nil
}

func (b *Bot) newRequest(msg *tele.Message, in model.Input) *model.Request {
	req := &model.Request{
		ID:          b.newID(),
		RequesterID: msg.Sender.ID,
		MessageID:   msg.ID,
		Input:       in,
		ReceivedAt:  b.now(),
	}
	if msg.Chat != nil {
		req.ChatID = msg.Chat.ID
		req.ChatKind = model.ChatKind(msg.Chat.Type)
	}
	return req
}

// inputFromMessage maps an uploaded file to its input variant
func inputFromMessage(msg *tele.Message) (model.Input, bool) {
	switch {
	case msg == nil:
	case msg.Video != nil:
		return uploadInput(model.InputUploadedVideo, msg.Video.File, msg.Video.MIME), true
	case msg.VideoNote != nil:
		return uploadInput(model.InputUploadedVideo, msg.VideoNote.File, "video/mp4"), true
	case msg.Audio != nil:
		return uploadInput(model.InputUploadedAudio, msg.Audio.File, msg.Audio.MIME), true
	case msg.Voice != nil:
		return uploadInput(model.InputVoice, msg.Voice.File, msg.Voice.MIME), true
	case msg.Document != nil:
		mime := msg.Document.MIME
		switch {
		case strings.HasPrefix(mime, "video/"):
			return uploadInput(model.InputUploadedVideo, msg.Document.File, mime), true
		case strings.HasPrefix(mime, "audio/"):
			return uploadInput(model.InputUploadedAudio, msg.Document.File, mime), true
		}
	}
	return model.Input{Kind: model.InputUnsupported}, false
}

func uploadInput(kind model.InputKind, f tele.File, mime string) model.Input {
	return model.Input{
		Kind:     kind,
		FileID:   f.FileID,
		FileSize: int64(f.FileSize),
		MIME:     mime,
	}
}
