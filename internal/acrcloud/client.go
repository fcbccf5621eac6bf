package acrcloud

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"tunedetect/pkg/cache"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"
	"tunedetect/pkg/resilience"

	"go.uber.org/zap"
)

const (
	IdentifyURI      = "/v1/identify"
	DataType         = "audio"
	SignatureVersion = "1"
	DefaultTimeout   = 10 * time.Second
)

type Client struct {
	baseURL      string
	accessKey    string
	accessSecret string
	timeout      time.Duration
	client       *http.Client
	retry        *resilience.RetryConfig
	breaker      *resilience.CircuitBreaker
	cache        cache.Cache
	cacheTTL     time.Duration
	now          func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout bounds every single identify attempt
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry overrides the retry policy
func WithRetry(cfg *resilience.RetryConfig) Option {
	return func(c *Client) {
		if cfg != nil {
			c.retry = cfg
		}
	}
}

// WithCircuitBreaker fails fast while the provider keeps erroring
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithMatchCache stores matches by sample digest
func WithMatchCache(mc cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = mc
		c.cacheTTL = ttl
	}
}

// WithClock overrides the timestamp source used for signing
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates an ACRCloud identify client. host may omit the scheme.
func NewClient(host, accessKey, accessSecret string, opts ...Option) *Client {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	c := &Client{
		baseURL:      base,
		accessKey:    accessKey,
		accessSecret: accessSecret,
		timeout:      DefaultTimeout,
		client:       &http.Client{},
		retry:        resilience.SingleRetryConfig(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign returns the base64 HMAC-SHA1 signature for an identify request at timestamp
func Sign(accessKey, accessSecret, timestamp string) string {
	stringToSign := strings.Join([]string{
		http.MethodPost,
		IdentifyURI,
		accessKey,
		DataType,
		SignatureVersion,
		timestamp,
	}, "\n")

	mac := hmac.New(sha1.New, []byte(accessSecret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Recognize identifies the track in audioPath. A nil match with a nil error
// means the provider found nothing.
func (c *Client) Recognize(ctx context.Context, audioPath string) (*model.RecognitionMatch, error) {
	sample, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}

	digest := sampleDigest(sample)
	if match := c.cachedMatch(ctx, digest); match != nil {
		logger.Debug("Recognition served from cache", zap.String("digest", digest))
		return match, nil
	}

	var resp *IdentifyResponse
	call := func() error {
		return resilience.RetryWithExponentialBackoff(ctx, c.retry, func() error {
			r, err := c.identify(ctx, sample)
			if err != nil {
				logger.Warn("Identify attempt failed", zap.Error(err))
				return err
			}
			resp = r
			return nil
		})
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRecognitionService, err)
	}

	match := resp.TopMatch()
	if match == nil {
		logger.Info("No match",
			zap.Int("status_code", resp.Status.Code),
			zap.String("status_msg", resp.Status.Msg))
		return nil, nil
	}

	logger.Info("Track recognized",
		zap.String("title", match.Title),
		zap.Strings("artists", match.Artists))

	c.storeMatch(ctx, digest, match)
	return match, nil
}

// identify performs one signed attempt with a fresh timestamp
func (c *Client) identify(ctx context.Context, sample []byte) (*IdentifyResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := Sign(c.accessKey, c.accessSecret, timestamp)

	body, contentType, err := buildIdentifyBody(sample, map[string]string{
		"access_key":        c.accessKey,
		"data_type":         DataType,
		"signature_version": SignatureVersion,
		"signature":         signature,
		"sample_bytes":      strconv.Itoa(len(sample)),
		"timestamp":         timestamp,
	})
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+IdentifyURI, body)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("identify failed: status=%d, body=%s", resp.StatusCode, truncate(respBody, 256))
	}

	var result IdentifyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Status.Failed() {
		err := &StatusError{Code: result.Status.Code, Msg: result.Status.Msg}
		if !result.Status.Retryable() {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	return &result, nil
}

func buildIdentifyBody(sample []byte, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range []string{"access_key", "data_type", "signature_version", "signature", "sample_bytes", "timestamp"} {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("sample", "sample.mp3")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sample); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) cachedMatch(ctx context.Context, digest string) *model.RecognitionMatch {
	if c.cache == nil {
		return nil
	}
	var match model.RecognitionMatch
	if err := c.cache.Get(ctx, cache.MatchCacheKey(digest), &match); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("Match cache read failed", zap.Error(err))
		}
		return nil
	}
	return &match
}

func (c *Client) storeMatch(ctx context.Context, digest string, match *model.RecognitionMatch) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetWithTTL(ctx, cache.MatchCacheKey(digest), match, c.cacheTTL); err != nil {
		logger.Warn("Match cache write failed", zap.Error(err))
	}
}

func sampleDigest(sample []byte) string {
	sum := sha256.Sum256(sample)
	return hex.EncodeToString(sum[:])
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
