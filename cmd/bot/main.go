package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tunedetect/internal/acrcloud"
	"tunedetect/internal/admission"
	"tunedetect/internal/bot"
	"tunedetect/internal/config"
	"tunedetect/internal/media"
	"tunedetect/internal/pipeline"
	"tunedetect/internal/queue"
	"tunedetect/internal/songs"
	"tunedetect/internal/storage"
	"tunedetect/pkg/cache"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"
	"tunedetect/pkg/resilience"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file first
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		// logger is not configured yet
		_ = logger.Init(false)
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := logger.Init(cfg.Debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting tunedetect bot service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Leftovers of requests interrupted by a previous shutdown
	if err := os.RemoveAll(cfg.Media.TransientDir); err != nil {
		logger.Warn("Failed to clear transient dir", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Media.TransientDir, 0o755); err != nil {
		logger.Fatal("Failed to create transient dir", zap.Error(err))
	}

	tb, err := bot.NewTelebot(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize bot", zap.Error(err))
	}

	// Admission
	limiter := admission.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Interval, []int64{cfg.Telegram.AdminUserID})
	gate := admission.NewMembershipGate(bot.NewMemberQuerier(tb), cfg.Telegram.GroupID, cfg.Telegram.ChannelID, cfg.Telegram.MemberTimeout)

	// Media
	ytdlp := media.NewYtDLP(cfg.Media.YtDLPBin, cfg.Media.DownloadTimeout)
	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegBin)
	files := bot.NewFileDownloader(tb, tb.URL, tb.Token)

	uploads := media.NewUploadSource(files, cfg.MaxUploadBytes())
	acquirer := media.NewAcquirer().
		Register(media.NewYouTubeSource(ytdlp, cfg.MaxVideoBytes(), cfg.Media.MaxVideoHeight), model.InputYouTubeURL).
		Register(media.NewInstagramSource(ytdlp), model.InputInstagramURL).
		Register(uploads, model.InputUploadedVideo, model.InputUploadedAudio, model.InputVoice)

	// Recognition
	acrOpts := []acrcloud.Option{
		acrcloud.WithTimeout(cfg.ACRCloud.Timeout),
		acrcloud.WithCircuitBreaker(resilience.NewCircuitBreaker(5, time.Minute)),
	}
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, match cache disabled", zap.Error(err))
		} else {
			defer redisCache.Close()
			acrOpts = append(acrOpts, acrcloud.WithMatchCache(redisCache, cfg.Redis.MatchTTL))
		}
	}
	recognizer := acrcloud.NewClient(cfg.ACRCloud.Host, cfg.ACRCloud.AccessKey, cfg.ACRCloud.AccessSecret, acrOpts...)

	// Songs
	songOpts := []songs.Option{songs.WithBitrate(cfg.Songs.Bitrate)}
	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
		})
		if err != nil {
			logger.Warn("S3 unavailable, remote song store disabled", zap.Error(err))
		} else {
			songOpts = append(songOpts, songs.WithRemoteStore(s3))
		}
	}
	fetcher, err := songs.NewFetcher(cfg.Songs.Dir, ytdlp, ffmpeg, songOpts...)
	if err != nil {
		logger.Fatal("Failed to initialize song store", zap.Error(err))
	}

	deps := pipeline.Deps{
		Limiter:    limiter,
		Membership: gate,
		Acquirer:   acquirer,
		Normalizer: media.NewNormalizer(ffmpeg),
		Recognizer: recognizer,
		Songs:      fetcher,
		Messenger:  bot.NewMessenger(tb),
	}

	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, outcome events disabled", zap.Error(err))
		} else {
			defer rabbitMQ.Close()
			deps.Publisher = rabbitMQ
			logger.Info("RabbitMQ connection established")
		}
	}

	orchestrator := pipeline.NewOrchestrator(deps, cfg.Media.TransientDir)
	botInstance := bot.New(tb, orchestrator, cfg)

	go sweepRateLimits(ctx, limiter, cfg.RateLimit.Interval)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting Telegram bot")
		botInstance.Start()
	}()

	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	cancel()
	botInstance.Stop()

	logger.Info("Bot service shutdown complete")
}

// sweepRateLimits drops idle rate-limit records once per window
func sweepRateLimits(ctx context.Context, limiter *admission.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				logger.Debug("Swept idle rate-limit records", zap.Int("count", n))
			}
		}
	}
}
