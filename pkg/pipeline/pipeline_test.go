package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igepub/pkg/archive"
	"igepub/pkg/config"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/layout"
	"igepub/pkg/logger"
	"igepub/pkg/metadata"
	"igepub/pkg/models"
	"igepub/pkg/scraper"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 40), B: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeProvider struct {
	posts []models.Post
	image []byte
	// iterErr is yielded before any post when set
	iterErr    error
	onDownload func()
}

func (p *fakeProvider) Authenticate(ctx context.Context, name string) (scraper.Session, error) {
	if name != "alice" {
		return nil, igerrors.New(igerrors.ErrorTypeSession, fmt.Sprintf("session %q not found", name))
	}
	return p, nil
}

func (p *fakeProvider) seq() iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		if p.iterErr != nil {
			yield(models.Post{}, p.iterErr)
			return
		}
		for _, post := range p.posts {
			if !yield(post, nil) {
				return
			}
		}
	}
}

func (p *fakeProvider) UserPosts(ctx context.Context, username string) iter.Seq2[models.Post, error] {
	return p.seq()
}

func (p *fakeProvider) HashtagPosts(ctx context.Context, tag string) iter.Seq2[models.Post, error] {
	return p.seq()
}

func (p *fakeProvider) Download(ctx context.Context, url string) ([]byte, error) {
	if p.onDownload != nil {
		defer p.onDownload()
	}
	return p.image, nil
}

// fakeSource serves re-downloads for the resolver
type fakeSource struct {
	data  []byte
	calls []string
}

func (s *fakeSource) Download(ctx context.Context, url string) ([]byte, error) {
	s.calls = append(s.calls, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.data == nil {
		return nil, errors.New("connection refused")
	}
	return s.data, nil
}

// listPackager writes one line per chapter instead of a real container
type listPackager struct {
	chapters []string
}

func (p *listPackager) New(meta archive.Metadata) (archive.Archive, error) {
	return &listArchive{packager: p}, nil
}

type listArchive struct {
	packager *listPackager
}

func (a *listArchive) AddStylesheet(name, css string) (string, error) { return "../css/" + name, nil }
func (a *listArchive) SetCover(img archive.Image) error               { return nil }
func (a *listArchive) ImageRef(name string) string                    { return "../images/" + name }

func (a *listArchive) AddChapter(ch archive.Chapter, img archive.Image) error {
	a.packager.chapters = append(a.packager.chapters, ch.Title)
	return nil
}

func (a *listArchive) Write(path string) error {
	return os.WriteFile(path, []byte(strings.Join(a.packager.chapters, "\n")), 0644)
}

type recordingNotifier struct {
	successes []string
	failures  []string
}

func (n *recordingNotifier) SendSuccess(title, message string) {
	n.successes = append(n.successes, title)
}

func (n *recordingNotifier) SendError(title, message string) {
	n.failures = append(n.failures, title)
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.ImageDir = filepath.Join(dir, "temp_images")
	cfg.Storage.PostsFile = filepath.Join(dir, "posts_data.json")
	cfg.Layout.Dir = filepath.Join(dir, "book_layout")
	cfg.Archive.Output = filepath.Join(dir, "output.epub")
	cfg.Fetch.Delay = 0
	cfg.Notifications.Enabled = true

	_, err := layout.WriteDefaults(cfg.Layout.Dir, cfg.Layout.HTMLFile, cfg.Layout.CSSFile)
	require.NoError(t, err)
	return cfg, dir
}

func tagPost(id, caption string, day int) models.Post {
	return models.Post{
		ID:       id,
		Caption:  caption,
		ImageURL: "https://cdn.example.com/" + id + ".png",
		PostURL:  "https://www.instagram.com/p/" + id + "/",
		TakenAt:  time.Date(2024, 1, day, 9, 0, 0, 0, time.UTC),
	}
}

func TestAllRunsFetchBuildClean(t *testing.T) {
	cfg, dir := testConfig(t)
	provider := &fakeProvider{
		image: pngBytes(t),
		posts: []models.Post{
			tagPost("B2", "second #Cat #sun", 2),
			tagPost("XX", "#cat only", 3),
			tagPost("A1", "first #cat #SUN", 1),
		},
	}
	packager := &listPackager{}
	notifier := &recordingNotifier{}
	p := New(cfg, Dependencies{Provider: provider, Packager: packager, Notifier: notifier}, logger.NewTestLogger())

	output := filepath.Join(dir, "cats.epub")
	summary, err := p.All(context.Background(),
		scraper.Options{Tags: []string{"#cat", "sun"}, SessionName: "alice"},
		archive.Options{Output: output})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetch.Accepted)
	assert.Equal(t, 2, summary.Build.Chapters)
	assert.True(t, summary.Cleaned)
	assert.Equal(t, []string{"Post 1: 2024-01-01", "Post 2: 2024-01-02"}, packager.chapters)

	_, err = os.Stat(cfg.Storage.ImageDir)
	assert.True(t, os.IsNotExist(err), "working directory should be removed")
	assert.FileExists(t, output)

	stored, err := metadata.NewStore(cfg.Storage.PostsFile).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2"}, stored.IDs())
	assert.Equal(t, []string{"Archive ready"}, notifier.successes)
}

func TestAllStopsWhenSessionIsRejected(t *testing.T) {
	cfg, _ := testConfig(t)
	store := metadata.NewStore(cfg.Storage.PostsFile)
	stale := models.Collection{tagPost("OLD", "#cat", 1).Record(filepath.Join(cfg.Storage.ImageDir, "OLD.png"))}
	require.NoError(t, store.Save(stale))
	require.NoError(t, os.MkdirAll(cfg.Storage.ImageDir, 0755))

	provider := &fakeProvider{
		image:   pngBytes(t),
		iterErr: &igerrors.Error{Type: igerrors.ErrorTypeSession, Message: "login required", Code: 401},
	}
	packager := &listPackager{}
	notifier := &recordingNotifier{}
	p := New(cfg, Dependencies{Provider: provider, Packager: packager, Notifier: notifier}, logger.NewTestLogger())

	summary, err := p.All(context.Background(),
		scraper.Options{Tags: []string{"cat"}, SessionName: "alice"},
		archive.Options{})
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeSession))

	assert.Nil(t, summary.Build)
	assert.False(t, summary.Cleaned)
	assert.Empty(t, packager.chapters)
	assert.DirExists(t, cfg.Storage.ImageDir)
	assert.Equal(t, []string{"Fetch failed"}, notifier.failures)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD"}, stored.IDs())
}

func TestAllBuildsAfterInterruptedFetch(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the fetched image is left empty, so the build has to download it again
	provider := &fakeProvider{
		image:      []byte{},
		posts:      []models.Post{tagPost("A1", "#cat", 1), tagPost("B2", "#cat", 2)},
		onDownload: cancel,
	}
	source := &fakeSource{data: pngBytes(t)}
	packager := &listPackager{}
	p := New(cfg, Dependencies{Provider: provider, Packager: packager, Source: source}, logger.NewTestLogger())

	summary, err := p.All(ctx,
		scraper.Options{Tags: []string{"cat"}, SessionName: "alice"},
		archive.Options{Output: filepath.Join(dir, "cats.epub")})
	require.NoError(t, err)

	assert.True(t, summary.Fetch.Interrupted())
	assert.Equal(t, []string{"A1"}, summary.Fetch.Posts.IDs())
	assert.Equal(t, []string{"https://cdn.example.com/A1.png"}, source.calls)
	assert.Equal(t, []string{"Post 1: 2024-01-01"}, packager.chapters)
	assert.True(t, summary.Cleaned)
}

func TestAllWithoutTagsOrUser(t *testing.T) {
	cfg, _ := testConfig(t)
	notifier := &recordingNotifier{}
	p := New(cfg, Dependencies{Provider: &fakeProvider{}, Packager: &listPackager{}, Notifier: notifier}, logger.NewTestLogger())

	_, err := p.All(context.Background(), scraper.Options{Tags: []string{" # "}, SessionName: "alice"}, archive.Options{})
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypePrecondition))
	assert.NoFileExists(t, cfg.Storage.PostsFile)
	assert.Equal(t, []string{"All failed"}, notifier.failures)
}

func TestFetchWithUnknownSessionWritesNothing(t *testing.T) {
	cfg, _ := testConfig(t)
	p := New(cfg, Dependencies{Provider: &fakeProvider{}, Packager: &listPackager{}}, logger.NewTestLogger())

	_, err := p.Fetch(context.Background(), scraper.Options{Tags: []string{"cat"}, SessionName: "mallory"})
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeSession))
	assert.NoFileExists(t, cfg.Storage.PostsFile)
}

func TestFetchUsesDefaultSession(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Instagram.DefaultSession = "alice"
	provider := &fakeProvider{image: pngBytes(t), posts: []models.Post{tagPost("A1", "#cat", 1)}}
	p := New(cfg, Dependencies{Provider: provider, Packager: &listPackager{}}, logger.NewTestLogger())

	result, err := p.Fetch(context.Background(), scraper.Options{Tags: []string{"cat"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.FileExists(t, cfg.Storage.PostsFile)
}

func TestFetchWithNoMatchesKeepsDocument(t *testing.T) {
	cfg, _ := testConfig(t)
	store := metadata.NewStore(cfg.Storage.PostsFile)
	require.NoError(t, store.Save(models.Collection{{ID: "OLD", CapturedAt: "2023-05-01T00:00:00Z"}}))
	before, err := os.ReadFile(cfg.Storage.PostsFile)
	require.NoError(t, err)

	provider := &fakeProvider{image: pngBytes(t), posts: []models.Post{tagPost("A1", "no tags here", 1)}}
	log := logger.NewTestLogger()
	p := New(cfg, Dependencies{Provider: provider, Packager: &listPackager{}}, log)

	result, err := p.Fetch(context.Background(), scraper.Options{Tags: []string{"cat"}, SessionName: "alice"})
	require.NoError(t, err)
	assert.Empty(t, result.Posts)
	assert.Equal(t, 1, result.Processed)

	after, err := os.ReadFile(cfg.Storage.PostsFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, log.HasMessage("Nothing matched, posts document left unchanged"))
}

func TestBuildWithoutDocument(t *testing.T) {
	cfg, _ := testConfig(t)
	p := New(cfg, Dependencies{Packager: &listPackager{}}, logger.NewTestLogger())

	_, err := p.Build(context.Background(), archive.Options{})
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypePrecondition))
	assert.Contains(t, err.Error(), "run fetch first")
	assert.NoFileExists(t, cfg.Archive.Output)
}

func TestBuildEmptyDocumentIsSkipped(t *testing.T) {
	cfg, _ := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Storage.PostsFile, []byte("[]"), 0644))
	notifier := &recordingNotifier{}
	p := New(cfg, Dependencies{Packager: &listPackager{}, Notifier: notifier}, logger.NewTestLogger())

	report, err := p.Build(context.Background(), archive.Options{})
	require.NoError(t, err)
	assert.True(t, report.Empty)
	assert.NoFileExists(t, cfg.Archive.Output)
	assert.Empty(t, notifier.successes)
}

func TestBuildRepairsMissingImages(t *testing.T) {
	cfg, dir := testConfig(t)
	present := filepath.Join(dir, "kept.png")
	require.NoError(t, os.WriteFile(present, pngBytes(t), 0644))

	store := metadata.NewStore(cfg.Storage.PostsFile)
	require.NoError(t, store.Save(models.Collection{
		{ID: "A1", LocalImagePath: present, CapturedAt: "2024-01-01T00:00:00Z"},
		{ID: "B2", LocalImagePath: filepath.Join(dir, "gone.png"), ImageURL: "https://cdn.example.com/B2.png", CapturedAt: "2024-01-02T00:00:00Z"},
		{ID: "C3", CapturedAt: "2024-01-03T00:00:00Z"},
	}))

	source := &fakeSource{data: pngBytes(t)}
	packager := &listPackager{}
	p := New(cfg, Dependencies{Packager: packager, Source: source}, logger.NewTestLogger())

	report, err := p.Build(context.Background(), archive.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/B2.png"}, source.calls)
	assert.Equal(t, 2, report.Chapters)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "C3", report.Skipped[0].ID)
	assert.FileExists(t, filepath.Join(cfg.Storage.ImageDir, "B2.png"))
	assert.FileExists(t, cfg.Archive.Output)
}

func TestBuildWritesMetricsTextfile(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(dir, "igepub.prom")
	image := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(image, pngBytes(t), 0644))
	require.NoError(t, metadata.NewStore(cfg.Storage.PostsFile).Save(models.Collection{{ID: "A1", LocalImagePath: image}}))

	p := New(cfg, Dependencies{Packager: &listPackager{}, Source: &fakeSource{}}, logger.NewTestLogger())
	_, err := p.Build(context.Background(), archive.Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "igepub_chapters_written_total 1")
}

func TestCleanIsIdempotent(t *testing.T) {
	cfg, _ := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Storage.ImageDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.ImageDir, "A1.jpg"), []byte("x"), 0644))

	p := New(cfg, Dependencies{Packager: &listPackager{}}, logger.NewTestLogger())
	require.NoError(t, p.Clean())
	require.NoError(t, p.Clean())
	_, err := os.Stat(cfg.Storage.ImageDir)
	assert.True(t, os.IsNotExist(err))
}
