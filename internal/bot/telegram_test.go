package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	"tunedetect/internal/admission"
	"tunedetect/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	args := m.Called(to, what, opts)
	msg, _ := args.Get(0).(*tele.Message)
	return msg, args.Error(1)
}

func (m *MockSender) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	args := m.Called(msg, what, opts)
	out, _ := args.Get(0).(*tele.Message)
	return out, args.Error(1)
}

func (m *MockSender) Delete(msg tele.Editable) error {
	args := m.Called(msg)
	return args.Error(0)
}

func TestMessenger_SendMessageWithButtons(t *testing.T) {
	api := new(MockSender)
	var opts *tele.SendOptions
	api.On("Send", &tele.Chat{ID: 10}, "<b>hi</b>", mock.Anything).
		Run(func(args mock.Arguments) {
			opts = args.Get(2).([]interface{})[0].(*tele.SendOptions)
		}).
		Return(&tele.Message{ID: 99}, nil)

	m := NewMessenger(api)
	id, err := m.SendMessage(context.Background(), 10, 5, "<b>hi</b>",
		pipeline.Button{Text: "Spotify", URL: "https://open.spotify.com/track/1"},
		pipeline.Button{Text: "YouTube", URL: "https://www.youtube.com/watch?v=2"},
	)

	require.NoError(t, err)
	assert.Equal(t, 99, id)
	require.NotNil(t, opts)
	assert.Equal(t, tele.ModeHTML, opts.ParseMode)
	assert.Equal(t, 5, opts.ReplyTo.ID)
	require.NotNil(t, opts.ReplyMarkup)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 1)
	row := opts.ReplyMarkup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "https://open.spotify.com/track/1", row[0].URL)
	assert.Equal(t, "YouTube", row[1].Text)
}

func TestMessenger_EditAndDelete(t *testing.T) {
	api := new(MockSender)
	stored := tele.StoredMessage{MessageID: "7", ChatID: 10}
	api.On("Edit", stored, "working", mock.Anything).Return(&tele.Message{ID: 7}, nil).Once()
	api.On("Delete", stored).Return(nil).Once()

	m := NewMessenger(api)
	require.NoError(t, m.EditMessage(context.Background(), 10, 7, "working"))
	require.NoError(t, m.DeleteMessage(context.Background(), 10, 7))
	api.AssertExpectations(t)
}

func TestMessenger_SendAudio(t *testing.T) {
	api := new(MockSender)
	api.On("Send", &tele.Chat{ID: 10}, mock.MatchedBy(func(a *tele.Audio) bool {
		return a.Title == "Song X" && a.Performer == "Artist Y" && a.FileName == "Song X.mp3"
	}), mock.Anything).Return(&tele.Message{ID: 1}, nil).Once()

	m := NewMessenger(api)
	require.NoError(t, m.SendAudio(context.Background(), 10, 0, "/music/Song X.mp3", "Song X", "Artist Y"))
	api.AssertExpectations(t)
}

func TestMessenger_SendVideo(t *testing.T) {
	api := new(MockSender)
	api.On("Send", &tele.Chat{ID: 10}, mock.MatchedBy(func(v *tele.Video) bool {
		return v.Caption == "First line"
	}), mock.Anything).Return(nil, errors.New("request entity too large")).Once()

	m := NewMessenger(api)
	err := m.SendVideo(context.Background(), 10, 3, "/tmp/abc.mp4", "First line")
	assert.ErrorContains(t, err, "failed to send video")
}

func TestMessenger_CancelledContext(t *testing.T) {
	api := new(MockSender)
	m := NewMessenger(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.SendMessage(ctx, 10, 0, "x")
	assert.ErrorIs(t, err, context.Canceled)
	api.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

type fakeLookup struct {
	member *tele.ChatMember
	err    error
	delay  time.Duration
	panics bool
}

func (f fakeLookup) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	time.Sleep(f.delay)
	if f.panics {
		panic("unexpected chat member payload")
	}
	return f.member, f.err
}

func TestMemberQuerier_Status(t *testing.T) {
	tests := []struct {
		name   string
		member *tele.ChatMember
		want   admission.MemberStatus
	}{
		{"creator", &tele.ChatMember{Role: tele.Creator}, admission.StatusOwner},
		{"administrator", &tele.ChatMember{Role: tele.Administrator}, admission.StatusAdmin},
		{"member", &tele.ChatMember{Role: tele.Member}, admission.StatusMember},
		{"restricted member", &tele.ChatMember{Role: tele.Restricted, Member: true}, admission.StatusMember},
		{"restricted non-member", &tele.ChatMember{Role: tele.Restricted}, admission.StatusLeft},
		{"left", &tele.ChatMember{Role: tele.Left}, admission.StatusLeft},
		{"kicked", &tele.ChatMember{Role: tele.Kicked}, admission.StatusBanned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewMemberQuerier(fakeLookup{member: tt.member})
			got, err := q.MembershipStatus(context.Background(), -1001, 42)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == admission.StatusMember || tt.want == admission.StatusAdmin || tt.want == admission.StatusOwner, got.Granted())
		})
	}
}

func TestMemberQuerier_Errors(t *testing.T) {
	q := NewMemberQuerier(fakeLookup{err: errors.New("chat not found")})
	status, err := q.MembershipStatus(context.Background(), -1001, 42)
	assert.Error(t, err)
	assert.Equal(t, admission.StatusUnknown, status)

	slow := NewMemberQuerier(fakeLookup{member: &tele.ChatMember{Role: tele.Member}, delay: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	status, err = slow.MembershipStatus(ctx, -1001, 42)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, admission.StatusUnknown, status)
}

func TestMemberQuerier_PanicIsError(t *testing.T) {
	q := NewMemberQuerier(fakeLookup{panics: true})

	status, err := q.MembershipStatus(context.Background(), -1001, 42)

	assert.ErrorContains(t, err, "unexpected chat member payload")
	assert.Equal(t, admission.StatusUnknown, status)
}

type fakeLocator struct {
	file tele.File
	err  error
}

func (f fakeLocator) FileByID(fileID string) (tele.File, error) {
	return f.file, f.err
}

func TestFileDownloader_DownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/botTOKEN/voice/file_1.oga" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ogg bytes"))
	}))
	defer srv.Close()

	d := NewFileDownloader(fakeLocator{file: tele.File{FilePath: "voice/file_1.oga"}}, srv.URL, "TOKEN")
	dest := filepath.Join(t.TempDir(), "upload.ogg")

	require.NoError(t, d.DownloadFile(context.Background(), "file-1", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ogg bytes", string(data))
}

func TestFileDownloader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "upload.ogg")

	d := NewFileDownloader(fakeLocator{file: tele.File{FilePath: "missing"}}, srv.URL, "TOKEN")
	assert.ErrorContains(t, d.DownloadFile(context.Background(), "file-1", dest), "status=404")
	assert.NoFileExists(t, dest)

	d = NewFileDownloader(fakeLocator{err: errors.New("file is too big")}, srv.URL, "TOKEN")
	assert.ErrorContains(t, d.DownloadFile(context.Background(), "file-1", dest), "failed to get file info")

	d = NewFileDownloader(fakeLocator{file: tele.File{FilePath: "x"}}, "http://127.0.0.1:1", "SECRET")
	err := d.DownloadFile(context.Background(), "file-1", dest)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}
