package scraper

import (
	"context"
	"iter"

	"igepub/pkg/models"
)

// Provider resolves a named session into an authenticated handle
type Provider interface {
	Authenticate(ctx context.Context, name string) (Session, error)
}

// Session is an authenticated handle on the platform. The iterators are lazy:
// each page is requested only when the caller pulls past the previous one.
// An iteration error is yielded once and ends the sequence.
type Session interface {
	UserPosts(ctx context.Context, username string) iter.Seq2[models.Post, error]
	HashtagPosts(ctx context.Context, tag string) iter.Seq2[models.Post, error]
	Download(ctx context.Context, url string) ([]byte, error)
}
