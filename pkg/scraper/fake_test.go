package scraper

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"igepub/pkg/models"
)

// fakeProvider hands out a single fakeSession for any known name
type fakeProvider struct {
	session *fakeSession
	names   map[string]bool
}

func (p *fakeProvider) Authenticate(ctx context.Context, name string) (Session, error) {
	if !p.names[name] {
		return nil, fmt.Errorf("no session named %q", name)
	}
	return p.session, nil
}

// fakeSession yields fixed posts and serves downloads from memory
type fakeSession struct {
	userPosts    []models.Post
	tagPosts     []models.Post
	iterErrAfter int // yield an error after this many posts; 0 disables
	iterErr      error
	failURLs     map[string]bool
	searchedTag  string
	searchedUser string
	downloads    []string
	// onDownload runs after each download, used to cancel mid-scan
	onDownload func()
}

func (s *fakeSession) seq(posts []models.Post) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		for i, p := range posts {
			if s.iterErr != nil && i == s.iterErrAfter {
				yield(models.Post{}, s.iterErr)
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (s *fakeSession) UserPosts(ctx context.Context, username string) iter.Seq2[models.Post, error] {
	s.searchedUser = username
	return s.seq(s.userPosts)
}

func (s *fakeSession) HashtagPosts(ctx context.Context, tag string) iter.Seq2[models.Post, error] {
	s.searchedTag = tag
	return s.seq(s.tagPosts)
}

func (s *fakeSession) Download(ctx context.Context, url string) ([]byte, error) {
	s.downloads = append(s.downloads, url)
	if s.onDownload != nil {
		defer s.onDownload()
	}
	if s.failURLs[url] {
		return nil, fmt.Errorf("GET %s: connection reset", url)
	}
	return []byte("img:" + url[strings.LastIndex(url, "/")+1:]), nil
}

func post(id, caption string) models.Post {
	return models.Post{
		ID:       id,
		Caption:  caption,
		ImageURL: "https://cdn.example.com/" + id + ".jpg",
		PostURL:  "https://www.instagram.com/p/" + id + "/",
	}
}
