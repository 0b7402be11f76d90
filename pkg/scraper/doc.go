// Package scraper implements the session-backed fetch loop.
//
// A Provider turns a session name into a Session that can iterate a
// profile's posts or a hashtag's recent posts and download media. The
// Fetcher walks one of those iterators sequentially:
//
//   - in user mode every post is accepted;
//   - in hashtag mode only the first tag drives the search, and a post is
//     accepted when its caption contains every requested tag as "#tag",
//     compared case-insensitively.
//
// Each accepted post gets exactly one download attempt into the working
// image directory. A failed download drops the post. A fixed delay follows
// every candidate whether or not it matched, and a progress line is logged
// every ProgressInterval candidates.
//
// Provider iteration errors and cancellation stop the scan early; the posts
// gathered so far are returned with Result.Truncated set.
//
//	fetcher := scraper.NewFetcher(provider, storage.NewManager("temp_images"),
//	    scraper.Settings{Delay: time.Second}, log)
//	result, err := fetcher.Fetch(ctx, scraper.Options{
//	    Tags:        []string{"tokyo", "night"},
//	    SessionName: "personal",
//	})
package scraper
