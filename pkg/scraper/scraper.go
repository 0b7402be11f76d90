package scraper

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"igepub/internal/downloader"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/hashtag"
	"igepub/pkg/logger"
	"igepub/pkg/metrics"
	"igepub/pkg/models"
	"igepub/pkg/ratelimit"
)

// Reasons a fetch stopped before the provider ran out of posts
const (
	ReasonInterrupted    = "interrupted"
	ReasonMaxPosts       = "max posts reached"
	ReasonIterationError = "iteration error"
)

// DefaultProgressInterval is how many candidates pass between progress lines
const DefaultProgressInterval = 10

// Options selects what a single fetch collects
type Options struct {
	Tags        []string
	SessionName string
	TargetUser  string

	// Since and Until bound the capture date, inclusive. Zero means open.
	Since time.Time
	Until time.Time
	// MaxPosts stops the scan after that many accepted posts. Zero means no limit.
	MaxPosts int
}

// Result is what a fetch accumulated. A truncated result is still usable.
type Result struct {
	Posts     models.Collection
	Processed int
	Accepted  int
	Failed    int
	Truncated bool
	Reason    string
	// IterationErr is the provider error that ended the scan early, if any
	IterationErr error
}

// Settings are the fetch loop knobs taken from configuration
type Settings struct {
	Delay            time.Duration
	ProgressInterval int
}

// Progress receives per-post updates for terminal display
type Progress interface {
	Accepted(id string, size int64)
	Failed(id string, err error)
	Checked(processed, accepted int)
}

// Fetcher runs the session-backed fetch loop: one candidate at a time,
// one download attempt per accepted post, a fixed pause after every candidate.
type Fetcher struct {
	provider Provider
	images   downloader.ImageStorage
	settings Settings
	metrics  metrics.Recorder
	progress Progress
	logger   logger.Logger
}

// NewFetcher creates a Fetcher saving images through images
func NewFetcher(provider Provider, images downloader.ImageStorage, settings Settings, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if settings.ProgressInterval <= 0 {
		settings.ProgressInterval = DefaultProgressInterval
	}
	return &Fetcher{
		provider: provider,
		images:   images,
		settings: settings,
		metrics:  metrics.Nop{},
		logger:   log,
	}
}

// SetMetrics sets the recorder for fetch counters
func (f *Fetcher) SetMetrics(r metrics.Recorder) {
	if r != nil {
		f.metrics = r
	}
}

// SetProgress sets the terminal progress display
func (f *Fetcher) SetProgress(p Progress) {
	f.progress = p
}

// Fetch collects posts for a user, or for the first tag filtered by all tags.
//
// It fails without side effects when there is nothing to search for or the
// session cannot be loaded, and also when the API rejects the session
// part way through. Everything else is best effort: a failed
// download drops that post, and a provider error or cancelled ctx ends the
// scan with the posts gathered so far.
func (f *Fetcher) Fetch(ctx context.Context, opts Options) (*Result, error) {
	tags := hashtag.Normalize(opts.Tags)
	targetUser := strings.TrimSpace(opts.TargetUser)
	if len(tags) == 0 && targetUser == "" {
		return nil, igerrors.Precondition("specify at least one hashtag or a target user")
	}

	session, err := f.provider.Authenticate(ctx, opts.SessionName)
	if err != nil {
		if !igerrors.Is(err, igerrors.ErrorTypeSession) {
			err = igerrors.Wrap(igerrors.ErrorTypeSession, err, fmt.Sprintf("authenticate %q", opts.SessionName))
		}
		return nil, err
	}

	log := f.logger.WithField("session", opts.SessionName)
	var posts iter.Seq2[models.Post, error]
	accept := func(models.Post) bool { return true }
	if targetUser != "" {
		log = log.WithField("target_user", targetUser)
		log.Info("Fetching profile posts")
		posts = session.UserPosts(ctx, targetUser)
	} else {
		log = log.WithField("tags", tags)
		log.InfoWithFields("Searching hashtag", map[string]interface{}{
			"search_tag": tags[0],
		})
		posts = session.HashtagPosts(ctx, tags[0])
		accept = CaptionFilter(tags)
	}

	dl := downloader.New(session, f.images, log)
	delay := ratelimit.Delay(f.settings.Delay)
	result := &Result{Posts: models.Collection{}}

	for post, err := range posts {
		if err != nil {
			if ctx.Err() != nil {
				result.stop(ReasonInterrupted)
				break
			}
			if igerrors.Is(err, igerrors.ErrorTypeSession) {
				log.WithError(err).Error("Session rejected, discarding this fetch")
				return nil, err
			}
			result.stop(ReasonIterationError)
			result.IterationErr = err
			log.WithError(err).WarnWithFields("Post iteration failed, keeping posts gathered so far", map[string]interface{}{
				"accepted": result.Accepted,
			})
			break
		}

		result.Processed++
		f.metrics.CandidateProcessed()

		if accept(post) && inWindow(post.TakenAt, opts.Since, opts.Until) {
			f.download(ctx, dl, post, result)
		}

		if result.Processed%f.settings.ProgressInterval == 0 {
			logger.LogFetchProgress(log, result.Processed, result.Accepted)
			if f.progress != nil {
				f.progress.Checked(result.Processed, result.Accepted)
			}
		}

		if opts.MaxPosts > 0 && result.Accepted >= opts.MaxPosts {
			result.stop(ReasonMaxPosts)
			break
		}

		if err := delay.Wait(ctx); err != nil {
			result.stop(ReasonInterrupted)
			break
		}
	}

	if result.Reason == ReasonInterrupted {
		log.Warn("Fetch interrupted, keeping posts gathered so far")
	}

	log.InfoWithFields("Fetch finished", map[string]interface{}{
		"processed": result.Processed,
		"accepted":  result.Accepted,
		"failed":    result.Failed,
		"truncated": result.Truncated,
	})
	return result, nil
}

// download makes the single attempt for an accepted post
func (f *Fetcher) download(ctx context.Context, dl *downloader.Downloader, post models.Post, result *Result) {
	res := dl.Fetch(ctx, downloader.DownloadJob{ID: post.ID, URL: post.ImageURL})
	if !res.Success() {
		result.Failed++
		f.metrics.DownloadFailed()
		if f.progress != nil {
			f.progress.Failed(post.ID, res.Error)
		}
		return
	}

	result.Posts = append(result.Posts, post.Record(res.Path))
	result.Accepted++
	f.metrics.PostAccepted()
	if f.progress != nil {
		f.progress.Accepted(post.ID, res.Size)
	}
}

func (r *Result) stop(reason string) {
	r.Truncated = true
	r.Reason = reason
}

// Interrupted reports whether the scan was cut short by cancellation
func (r *Result) Interrupted() bool {
	return r.Reason == ReasonInterrupted
}

// CaptionFilter accepts a post only when its caption contains every tag as a
// "#tag" substring, compared under Unicode case folding
func CaptionFilter(tags []string) func(models.Post) bool {
	fold := cases.Fold()
	needles := make([]string, len(tags))
	for i, tag := range tags {
		needles[i] = fold.String("#" + tag)
	}

	return func(post models.Post) bool {
		caption := fold.String(post.Caption)
		for _, needle := range needles {
			if !strings.Contains(caption, needle) {
				return false
			}
		}
		return true
	}
}

// inWindow reports whether takenAt falls inside [since, until]. Both bounds
// are calendar days; posts without a capture time only pass an open window.
func inWindow(takenAt, since, until time.Time) bool {
	if since.IsZero() && until.IsZero() {
		return true
	}
	if takenAt.IsZero() {
		return false
	}
	if !since.IsZero() && takenAt.Before(since) {
		return false
	}
	if !until.IsZero() && !takenAt.Before(until.AddDate(0, 0, 1)) {
		return false
	}
	return true
}
