package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tunedetect/internal/links"
	"tunedetect/internal/queue"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"
	"tunedetect/pkg/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const notifyTimeout = 10 * time.Second

type RateLimiter interface {
	Allow(userID int64) bool
	IsExempt(userID int64) bool
}

type MembershipChecker interface {
	CheckMembership(ctx context.Context, userID int64) (bool, error)
}

type Acquirer interface {
	Acquire(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error)
}

type Normalizer interface {
	ToAudioSample(ctx context.Context, artifact *model.MediaArtifact, dir string) (string, error)
}

// Recognizer returns a nil match with a nil error when nothing was identified
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (*model.RecognitionMatch, error)
}

type SongFetcher interface {
	Fetch(ctx context.Context, title, artist string) (*model.FetchedSong, error)
}

type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event *queue.OutcomeEvent) error
}

// Deps are the collaborators of an Orchestrator. Publisher is optional.
type Deps struct {
	Limiter    RateLimiter
	Membership MembershipChecker
	Acquirer   Acquirer
	Normalizer Normalizer
	Recognizer Recognizer
	Songs      SongFetcher
	Messenger  Messenger
	Publisher  OutcomePublisher
}

// Result is the terminal outcome of one request
type Result struct {
	RequestID   string
	State       State
	Reason      model.Reason
	Err         error
	Match       *model.RecognitionMatch
	Links       model.ResolvedLinks
	Song        *model.FetchedSong
	Transitions []State
	Duration    time.Duration
}

// Orchestrator drives each request through admission, acquisition,
// recognition, resolution and delivery. It is safe for concurrent use; every
// request gets its own workspace under transientDir.
type Orchestrator struct {
	deps         Deps
	transientDir string
	resolve      func(*model.RecognitionMatch) model.ResolvedLinks
	now          func() time.Time
}

func NewOrchestrator(deps Deps, transientDir string) *Orchestrator {
	return &Orchestrator{
		deps:         deps,
		transientDir: transientDir,
		resolve:      links.Resolve,
		now:          time.Now,
	}
}

// Process runs req to a terminal state. The request workspace is reclaimed
// before Process returns, whatever the outcome.
func (o *Orchestrator) Process(ctx context.Context, req *model.Request) (res *Result) {
	r := &run{
		req:     req,
		state:   StateReceived,
		started: o.now(),
		log:     logger.ForRequest(req.ID, req.RequesterID, zap.String("input_kind", string(req.Input.Kind))),
	}
	r.transitions = []State{StateReceived}
	r.log.Debug("Request received")

	var ws *Workspace
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Pipeline panic", zap.Any("panic", p), zap.Stack("stack"))
			r.fail(model.ReasonInternal, resilience.PanicError(p))
		}
		if err := ws.Reclaim(); err != nil {
			r.log.Error("Failed to reclaim workspace", zap.String("dir", ws.Dir), zap.Error(err))
		}
		o.finish(ctx, r)
		res = r.result(o.now())
	}()

	if req.Input.Kind == model.InputUnsupported {
		r.fail(model.ReasonInput, fmt.Errorf("%w: %q", model.ErrInput, req.Input.Text))
		return
	}

	var err error
	ws, err = NewWorkspace(o.transientDir, req.ID)
	if err != nil {
		r.fail(model.ReasonInternal, err)
		return
	}

	o.run(ctx, r, ws)
	return
}

func (o *Orchestrator) run(ctx context.Context, r *run, ws *Workspace) {
	req := r.req

	if !o.deps.Limiter.Allow(req.RequesterID) {
		r.fail(model.ReasonRateLimited, nil)
		return
	}
	r.advance(StateRateChecked)

	if !o.deps.Limiter.IsExempt(req.RequesterID) {
		ok, err := o.deps.Membership.CheckMembership(ctx, req.RequesterID)
		if err != nil {
			r.failErr(err)
			return
		}
		if !ok {
			r.fail(model.ReasonNotMember, nil)
			return
		}
	}
	r.advance(StateMemberChecked)

	r.status = o.newStatus(ctx, r)

	var artifact *model.MediaArtifact
	if req.Input.Kind == model.InputSearchQuery {
		title, artist := req.Input.SearchTerms()
		r.match = &model.RecognitionMatch{Title: title}
		if artist != "" {
			r.match.Artists = []string{artist}
		}
	} else {
		r.status.update(ctx, statusDownloading)
		var err error
		artifact, err = o.deps.Acquirer.Acquire(ctx, req.Input, ws.Dir)
		if err != nil {
			r.failErr(err)
			return
		}
		r.advance(StateAcquired)

		r.status.update(ctx, statusExtracting)
		sample, err := o.deps.Normalizer.ToAudioSample(ctx, artifact, ws.Dir)
		if err != nil {
			r.failErr(err)
			return
		}
		r.advance(StateNormalized)

		r.status.update(ctx, statusRecognizing)
		match, err := o.deps.Recognizer.Recognize(ctx, sample)
		if err != nil {
			r.failErr(err)
			return
		}
		if match == nil {
			r.fail(model.ReasonNoMatch, nil)
			return
		}
		r.match = match
		r.advance(StateRecognized)
	}

	r.status.update(ctx, statusFetching)
	if err := o.lookup(ctx, r); err != nil {
		r.failErr(err)
		return
	}
	r.advance(StateResolved)

	if err := o.deliver(ctx, r, artifact); err != nil {
		r.failErr(err)
		return
	}
	r.advance(StateDelivered)
}

// lookup resolves links and fetches the song concurrently
func (o *Orchestrator) lookup(ctx context.Context, r *run) error {
	g, gctx := errgroup.WithContext(ctx)

	var resolved model.ResolvedLinks
	g.Go(resilience.Guard(func() error {
		resolved = o.resolve(r.match)
		return nil
	}))

	var song *model.FetchedSong
	g.Go(resilience.Guard(func() error {
		var err error
		song, err = o.deps.Songs.Fetch(gctx, r.match.Title, r.match.PrimaryArtist())
		return err
	}))

	if err := g.Wait(); err != nil {
		return err
	}
	r.links = resolved
	r.song = song
	return nil
}

// finish notifies the user of a failure, removes the status message and
// publishes the outcome. It runs detached from ctx cancellation.
func (o *Orchestrator) finish(ctx context.Context, r *run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	r.status.remove(ctx)

	if r.state == StateFailed {
		r.log.Warn("Request failed",
			zap.String("reason", string(r.reason)),
			zap.Strings("transitions", stateNames(r.transitions)),
			zap.Error(r.err))

		if _, err := o.deps.Messenger.SendMessage(ctx, r.req.ChatID, r.req.MessageID, r.reason.UserMessage()); err != nil {
			r.log.Warn("Failed to notify user", zap.Error(err))
		}
	} else {
		r.log.Info("Request delivered",
			zap.String("title", r.match.Title),
			zap.Bool("cache_hit", r.song != nil && r.song.CacheHit))
	}

	if o.deps.Publisher == nil {
		return
	}
	if err := o.deps.Publisher.PublishOutcome(ctx, r.event(o.now())); err != nil {
		r.log.Warn("Failed to publish outcome", zap.Error(err))
	}
}

// run is the mutable state of one request
type run struct {
	req         *model.Request
	state       State
	transitions []State
	reason      model.Reason
	err         error
	match       *model.RecognitionMatch
	links       model.ResolvedLinks
	song        *model.FetchedSong
	status      *statusMessage
	started     time.Time
	log         *zap.Logger
}

func (r *run) advance(next State) {
	if !r.state.canAdvance(next) {
		panic(transitionError{from: r.state, to: next})
	}
	r.log.Debug("Request transition", zap.String("from", string(r.state)), zap.String("state", string(next)))
	r.state = next
	r.transitions = append(r.transitions, next)
}

// fail moves to FAILED; a request that already reached a terminal state keeps it
func (r *run) fail(reason model.Reason, err error) {
	if r.state.Terminal() {
		return
	}
	r.reason = reason
	r.err = err
	r.advance(StateFailed)
}

func (r *run) failErr(err error) {
	r.fail(model.ReasonFor(err), err)
}

func (r *run) result(now time.Time) *Result {
	return &Result{
		RequestID:   r.req.ID,
		State:       r.state,
		Reason:      r.reason,
		Err:         r.err,
		Match:       r.match,
		Links:       r.links,
		Song:        r.song,
		Transitions: r.transitions,
		Duration:    now.Sub(r.started),
	}
}

func (r *run) event(now time.Time) *queue.OutcomeEvent {
	ev := &queue.OutcomeEvent{
		RequestID:  r.req.ID,
		UserID:     r.req.RequesterID,
		ChatID:     r.req.ChatID,
		InputKind:  string(r.req.Input.Kind),
		State:      string(r.state),
		Reason:     string(r.reason),
		DurationMs: now.Sub(r.started).Milliseconds(),
		FinishedAt: now,
	}
	if r.match != nil {
		ev.Title = r.match.Title
		ev.Artist = r.match.PrimaryArtist()
	}
	return ev
}

func stateNames(states []State) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return names
}

// IsTransitionError reports whether err comes from an illegal state move
func IsTransitionError(err error) bool {
	var te transitionError
	return errors.As(err, &te)
}
