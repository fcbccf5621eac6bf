package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"tunedetect/internal/admission"
	"tunedetect/internal/pipeline"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/resilience"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// sender is the subset of *tele.Bot used to talk to chats
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Messenger implements pipeline.Messenger on top of the Bot API
type Messenger struct {
	api sender
}

func NewMessenger(api sender) *Messenger {
	return &Messenger{api: api}
}

func sendOptions(replyTo int) *tele.SendOptions {
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
	if replyTo > 0 {
		opts.ReplyTo = &tele.Message{ID: replyTo}
	}
	return opts
}

func (m *Messenger) SendMessage(ctx context.Context, chatID int64, replyTo int, text string, buttons ...pipeline.Button) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	opts := sendOptions(replyTo)
	if len(buttons) > 0 {
		markup := &tele.ReplyMarkup{}
		btns := make([]tele.Btn, 0, len(buttons))
		for _, b := range buttons {
			btns = append(btns, markup.URL(b.Text, b.URL))
		}
		markup.Inline(markup.Row(btns...))
		opts.ReplyMarkup = markup
	}

	msg, err := m.api.Send(&tele.Chat{ID: chatID}, text, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

func (m *Messenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.Edit(storedMessage(chatID, messageID), text, tele.ModeHTML)
	return err
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.api.Delete(storedMessage(chatID, messageID))
}

func (m *Messenger) SendVideo(ctx context.Context, chatID int64, replyTo int, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := &tele.Video{
		File:     tele.FromDisk(path),
		FileName: filepath.Base(path),
		Caption:  caption,
	}
	if _, err := m.api.Send(&tele.Chat{ID: chatID}, video, &tele.SendOptions{ReplyTo: replyMessage(replyTo)}); err != nil {
		return fmt.Errorf("failed to send video: %w", err)
	}
	return nil
}

func (m *Messenger) SendAudio(ctx context.Context, chatID int64, replyTo int, path, title, performer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	audio := &tele.Audio{
		File:      tele.FromDisk(path),
		FileName:  filepath.Base(path),
		Title:     title,
		Performer: performer,
	}
	if _, err := m.api.Send(&tele.Chat{ID: chatID}, audio, &tele.SendOptions{ReplyTo: replyMessage(replyTo)}); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func storedMessage(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

func replyMessage(id int) *tele.Message {
	if id <= 0 {
		return nil
	}
	return &tele.Message{ID: id}
}

// memberLookup is the subset of *tele.Bot used for membership queries
type memberLookup interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// MemberQuerier implements admission.MembershipQuerier
type MemberQuerier struct {
	api memberLookup
}

func NewMemberQuerier(api memberLookup) *MemberQuerier {
	return &MemberQuerier{api: api}
}

// MembershipStatus queries the chat member record. The Bot API call itself
// cannot be cancelled, so ctx only bounds how long the caller waits.
func (q *MemberQuerier) MembershipStatus(ctx context.Context, chatID, userID int64) (admission.MemberStatus, error) {
	type result struct {
		member *tele.ChatMember
		err    error
	}
	done := make(chan result, 1)
	go func() {
		var m *tele.ChatMember
		err := resilience.Guard(func() (err error) {
			m, err = q.api.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
			return err
		})()
		done <- result{member: m, err: err}
	}()

	select {
	case <-ctx.Done():
		return admission.StatusUnknown, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return admission.StatusUnknown, fmt.Errorf("failed to get chat member: %w", r.err)
		}
		return memberStatus(r.member), nil
	}
}

func memberStatus(m *tele.ChatMember) admission.MemberStatus {
	if m == nil {
		return admission.StatusUnknown
	}
	switch m.Role {
	case tele.Creator:
		return admission.StatusOwner
	case tele.Administrator:
		return admission.StatusAdmin
	case tele.Member:
		return admission.StatusMember
	case tele.Restricted:
		if m.Member {
			return admission.StatusMember
		}
		return admission.StatusLeft
	case tele.Left:
		return admission.StatusLeft
	case tele.Kicked:
		return admission.StatusBanned
	default:
		return admission.StatusUnknown
	}
}

// fileLocator is the subset of *tele.Bot used to resolve file handles
type fileLocator interface {
	FileByID(fileID string) (tele.File, error)
}

// FileDownloader implements media.FileDownloader for Telegram-hosted files
type FileDownloader struct {
	api        fileLocator
	fileURL    string
	httpClient *http.Client
}

// NewFileDownloader downloads from apiURL/file/bot<token>/<path>
func NewFileDownloader(api fileLocator, apiURL, token string) *FileDownloader {
	return &FileDownloader{
		api:     api,
		fileURL: apiURL + "/file/bot" + token + "/",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (d *FileDownloader) DownloadFile(ctx context.Context, fileID, dest string) error {
	file, err := d.api.FileByID(fileID)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.fileURL+file.FilePath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// the request URL carries the bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: status=%d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to read file data: %w", err)
	}

	logger.Debug("File downloaded from Telegram",
		zap.String("file_id", fileID),
		zap.Int64("size", n))

	return nil
}
