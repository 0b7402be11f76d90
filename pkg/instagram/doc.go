// Package instagram implements the post provider over Instagram's web API.
//
// A Provider turns a stored session (see package auth) into an authenticated
// Client and exposes it as a scraper.Session:
//
//	provider := instagram.NewProvider(sessions, instagram.Options{
//	    Timeout: 30 * time.Second,
//	    Limiter: ratelimit.NewTokenBucket(60, 1),
//	}, log)
//
//	sess, err := provider.Authenticate(ctx, "personal")
//	if err != nil {
//	    // errors.Is(err, igerrors.ErrorTypeSession)
//	}
//
//	for post, err := range sess.HashtagPosts(ctx, "tokyo") {
//	    if err != nil {
//	        break
//	    }
//	    data, err := sess.Download(ctx, post.ImageURL)
//	    // ...
//	}
//
// Profile timelines are paged through the GraphQL query endpoint; hashtag
// feeds through the tag sections endpoint. Pages are requested lazily, so a
// caller that stops iterating stops issuing requests. API calls wait on the
// configured rate limiter; media downloads do not.
package instagram
