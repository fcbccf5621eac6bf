package bot

import (
	"context"
	"fmt"
	"sync"
	"time"
	"tunedetect/internal/config"
	"tunedetect/internal/pipeline"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// Processor runs one request to completion
type Processor interface {
	Process(ctx context.Context, req *model.Request) *pipeline.Result
}

type Bot struct {
	tb        *tele.Bot
	processor Processor
	groupLink string
	chanLink  string

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	newID   func() string
	now     func() time.Time
}

// NewTelebot creates the Bot API client with a long poller
func NewTelebot(cfg *config.Config) (*tele.Bot, error) {
	logger.Info("Starting bot initialization")

	pref := tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: &tele.LongPoller{
			Timeout: cfg.Telegram.PollTimeout,
		},
		OnError: func(err error, c tele.Context) {
			logger.Error("Handler error", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created successfully", zap.String("username", tb.Me.Username))
	return tb, nil
}

// New registers the handlers on tb and routes requests into processor
func New(tb *tele.Bot, processor Processor, cfg *config.Config) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		tb:        tb,
		processor: processor,
		groupLink: cfg.Telegram.GroupLink,
		chanLink:  cfg.Telegram.ChannelLink,
		ctx:       ctx,
		cancel:    cancel,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}

	b.registerHandlers()
	return b
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/help", b.handleHelp)
	b.tb.Handle("/search", b.handleSearch)
	b.tb.Handle(tele.OnText, b.handleText)
	b.tb.Handle(tele.OnVideo, b.handleMedia)
	b.tb.Handle(tele.OnVideoNote, b.handleMedia)
	b.tb.Handle(tele.OnAudio, b.handleMedia)
	b.tb.Handle(tele.OnVoice, b.handleMedia)
	b.tb.Handle(tele.OnDocument, b.handleMedia)
}

// Start polls for updates until Stop is called
func (b *Bot) Start() {
	logger.Info("Bot started")
	b.tb.Start()
}

// Stop stops polling, cancels in-flight requests and waits for them to finish
func (b *Bot) Stop() {
	b.tb.Stop()
	b.drain()
	logger.Info("Bot stopped")
}

// drain refuses new requests, cancels in-flight ones and waits for them
func (b *Bot) drain() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

// track registers an in-flight request; false once the bot is stopping
func (b *Bot) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	b.wg.Add(1)
	return true
}
