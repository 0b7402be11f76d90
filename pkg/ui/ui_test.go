package ui

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"igepub/pkg/archive"
	"igepub/pkg/scraper"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetQuietMode(false)
	})
	return &buf
}

func TestProgressDisplayLine(t *testing.T) {
	captureOutput(t)
	p := NewProgressDisplay("cat", false)

	p.Accepted("A1", 2048)
	p.Failed("B2", errors.New("timeout"))
	p.Checked(10, 1)

	line := p.Line()
	assert.Contains(t, line, "1 matched")
	assert.Contains(t, line, "10 checked")
	assert.Contains(t, line, "2.0 kB")
	assert.Contains(t, line, "A1")
	assert.Contains(t, line, "1 failed")
}

func TestProgressDisplayDebugPrintsEachPost(t *testing.T) {
	buf := captureOutput(t)
	p := NewProgressDisplay("alice", true)

	p.Accepted("A1", 1500)
	p.Failed("B2", errors.New("status 404"))

	out := buf.String()
	assert.Contains(t, out, "A1")
	assert.Contains(t, out, "1.5 kB")
	assert.Contains(t, out, "status 404")
}

func TestQuietModeSuppressesProgress(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	p := NewProgressDisplay("cat", false)
	p.Accepted("A1", 10)
	PrintSuccess("done")
	PrintBuildSummary(&archive.Report{Output: "cat.epub", Chapters: 1})
	assert.Empty(t, buf.String())

	PrintError("failed", "boom")
	assert.Contains(t, buf.String(), "failed: boom")
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) Send(title, message string) error {
	s.sent = append(s.sent, title+"|"+message)
	return errors.New("no notification daemon")
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("Archive ready", "cat.epub: 3 chapters")
	n.SendError("Build failed", "layout error")

	assert.Equal(t, []string{"Archive ready|cat.epub: 3 chapters", "Build failed|layout error"}, sender.sent)
	assert.Contains(t, buf.String(), "cat.epub: 3 chapters")
	assert.Contains(t, buf.String(), "layout error")
}

func TestPrintSummaries(t *testing.T) {
	buf := captureOutput(t)

	PrintFetchSummary(&scraper.Result{Processed: 1200, Accepted: 3, Failed: 1, Truncated: true, Reason: scraper.ReasonMaxPosts}, "posts_data.json")
	PrintBuildSummary(&archive.Report{
		Output:   "cat.epub",
		Title:    "cat",
		Chapters: 2,
		Skipped:  []archive.SkippedChapter{{ID: "B2", Reason: archive.SkipImage, Err: errors.New("image unreadable")}},
	})
	PrintBuildSummary(&archive.Report{Empty: true})

	out := buf.String()
	assert.Contains(t, out, "3 of 1,200 candidates matched")
	assert.Contains(t, out, "1 images could not be downloaded")
	assert.Contains(t, out, scraper.ReasonMaxPosts)
	assert.Contains(t, out, "nothing matched, posts_data.json left unchanged")
	assert.Contains(t, out, "2 chapters")
	assert.Contains(t, out, "skipped B2 (image): image unreadable")
	assert.Contains(t, out, "No posts to build")
}
