package instagram

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"igepub/pkg/auth"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/logger"
	"igepub/pkg/models"
	"igepub/pkg/ratelimit"
	"igepub/pkg/scraper"
)

// SessionSource loads stored sessions by name
type SessionSource interface {
	Load(name string) (*auth.Session, error)
}

// Options configures the clients handed out by a Provider
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// BaseURL overrides the API host; empty means BaseURL
	BaseURL string
	Limiter ratelimit.Limiter
}

// Provider authenticates stored sessions against the web API
type Provider struct {
	sessions SessionSource
	opts     Options
	logger   logger.Logger
}

// NewProvider creates a provider over the given session source
func NewProvider(sessions SessionSource, opts Options, log logger.Logger) *Provider {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Provider{sessions: sessions, opts: opts, logger: log}
}

// Authenticate loads the named session and returns a client bound to its
// cookies. A missing or invalid session is a session error.
func (p *Provider) Authenticate(ctx context.Context, name string) (scraper.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, err := p.sessions.Load(name)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeSession, err, fmt.Sprintf("load session %q", name))
	}
	if err := stored.Validate(); err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeSession, err, fmt.Sprintf("session %q", name))
	}

	client := NewClient(p.opts.Timeout, p.opts.Limiter, p.logger.WithField("session", name))
	if p.opts.BaseURL != "" {
		client.SetBaseURL(p.opts.BaseURL)
	}
	client.SetHeaders(map[string]string{
		"Cookie":      fmt.Sprintf("sessionid=%s; csrftoken=%s", stored.SessionID, stored.CSRFToken),
		"X-CSRFToken": stored.CSRFToken,
	})
	switch {
	case stored.UserAgent != "":
		client.SetHeader("User-Agent", stored.UserAgent)
	case p.opts.UserAgent != "":
		client.SetHeader("User-Agent", p.opts.UserAgent)
	}

	p.logger.InfoWithFields("Session loaded", map[string]interface{}{
		"session": name,
	})
	return &session{client: client}, nil
}

// session implements scraper.Session over a Client
type session struct {
	client *Client
}

// UserPosts yields a profile's timeline, newest first, one page at a time
func (s *session) UserPosts(ctx context.Context, username string) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		username = SanitizeUsername(username)
		if !IsValidUsername(username) {
			yield(models.Post{}, igerrors.Precondition("invalid username %q", username))
			return
		}

		profile, err := s.client.FetchUserProfile(ctx, username)
		if err != nil {
			yield(models.Post{}, err)
			return
		}

		userID := profile.Data.User.ID
		media := profile.Data.User.EdgeOwnerToTimelineMedia
		for {
			for _, edge := range media.Edges {
				if !yield(edge.Node.Post(), nil) {
					return
				}
			}
			if !media.PageInfo.HasNextPage || media.PageInfo.EndCursor == "" {
				return
			}

			page, err := s.client.FetchUserMedia(ctx, userID, media.PageInfo.EndCursor)
			if err != nil {
				yield(models.Post{}, err)
				return
			}
			media = page.Data.User.EdgeOwnerToTimelineMedia
		}
	}
}

// HashtagPosts yields a tag's recent media, one page at a time
func (s *session) HashtagPosts(ctx context.Context, tag string) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			yield(models.Post{}, igerrors.Precondition("empty hashtag"))
			return
		}

		page, err := s.client.FetchHashtag(ctx, tag)
		if err != nil {
			yield(models.Post{}, err)
			return
		}

		for {
			for _, post := range page.Posts() {
				if !yield(post, nil) {
					return
				}
			}
			if !page.MoreAvailable || page.NextMaxID == "" {
				return
			}

			prevMaxID := page.NextMaxID
			page, err = s.client.FetchHashtagPage(ctx, tag, page.NextMaxID, page.NextPage)
			if err != nil {
				yield(models.Post{}, err)
				return
			}
			if page.NextMaxID == prevMaxID && len(page.Sections) == 0 {
				return
			}
		}
	}
}

func (s *session) Download(ctx context.Context, url string) ([]byte, error) {
	return s.client.Download(ctx, url)
}
