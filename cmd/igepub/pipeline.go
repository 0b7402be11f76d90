package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igepub/pkg/archive"
	"igepub/pkg/auth"
	"igepub/pkg/config"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/hashtag"
	"igepub/pkg/instagram"
	"igepub/pkg/logger"
	"igepub/pkg/pipeline"
	"igepub/pkg/ratelimit"
	"igepub/pkg/scraper"
	"igepub/pkg/ui"
)

const dateLayout = "2006-01-02"

var (
	// fetch flags
	tagsFlag    string
	targetUser  string
	sessionName string
	sinceFlag   string
	untilFlag   string
	maxPosts    int
	fetchDelay  time.Duration

	// build flags
	bookTitle  string
	bookAuthor string
	outputPath string
	language   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [hashtags...]",
	Short: "Download matching posts and write the posts document",
	Long: `Fetch posts for a target user, or search the first hashtag and keep only
posts whose caption contains every requested hashtag.

Each accepted post's image is downloaded once into the working image
directory. A fetch that matches nothing leaves the posts document alone.
Ctrl-C stops the scan and keeps what was gathered so far.`,
	Example: `  # Posts tagged with both #tokyo and #night
  igepub fetch tokyo night --session me

  # Every post of a profile from 2024
  igepub fetch --user alice --since 2024-01-01 --until 2024-12-31`,
	RunE: runFetch,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the EPUB from the posts document",
	Long: `Build reads the posts document, downloads any image that went missing
from the working directory, and writes one chapter per post using the
layout in the layout directory. Run 'igepub layout init' to create one.`,
	Example: `  igepub build --title "Tokyo nights" --output tokyo.epub`,
	Args:    cobra.NoArgs,
	RunE:    runBuild,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the working image directory",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

var allCmd = &cobra.Command{
	Use:   "all [hashtags...]",
	Short: "Fetch, build and clean in one run",
	Long: `All runs fetch, build and clean in sequence. It needs at least one hashtag
or a target user. Without --output the book is named after the target user,
else the first hashtag. Images are only removed when a book was written.`,
	Example: `  igepub all tokyo night --session me`,
	RunE:    runAll,
}

func init() {
	rootCmd.AddCommand(fetchCmd, buildCmd, cleanCmd, allCmd)

	for _, cmd := range []*cobra.Command{fetchCmd, allCmd} {
		cmd.Flags().StringVarP(&tagsFlag, "tags", "t", "", "hashtags separated by spaces or commas")
		cmd.Flags().StringVarP(&targetUser, "user", "u", "", "fetch this profile instead of searching a hashtag")
		cmd.Flags().StringVarP(&sessionName, "session", "s", "", "stored session to use (see 'igepub auth list')")
		cmd.Flags().StringVar(&sinceFlag, "since", "", "skip posts captured before this day (YYYY-MM-DD)")
		cmd.Flags().StringVar(&untilFlag, "until", "", "skip posts captured after this day (YYYY-MM-DD)")
		cmd.Flags().IntVar(&maxPosts, "max-posts", 0, "stop after this many posts (0 = no limit)")
		cmd.Flags().DurationVar(&fetchDelay, "delay", time.Second, "pause after every checked post")
	}
	for _, cmd := range []*cobra.Command{buildCmd, allCmd} {
		cmd.Flags().StringVar(&bookTitle, "title", "", "book title (default: output file name)")
		cmd.Flags().StringVar(&bookAuthor, "author", "", "book author")
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output EPUB path")
		cmd.Flags().StringVar(&language, "language", "", "book language code")
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, commandFlags(cmd))
	if err != nil {
		return err
	}
	opts, err := fetchOptions(cfg, args)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	progress := ui.NewProgressDisplay(fetchTarget(opts), cfg.Logging.Level == "debug")
	p, err := newPipeline(cfg, progress)
	if err != nil {
		return err
	}

	result, err := p.Fetch(cmd.Context(), opts)
	progress.Complete()
	if err != nil {
		return err
	}
	ui.PrintFetchSummary(result, cfg.Storage.PostsFile)
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, commandFlags(cmd))
	if err != nil {
		return err
	}
	p := pipeline.New(cfg, pipeline.Dependencies{Notifier: ui.NewNotifier()}, logger.GetLogger())
	report, err := p.Build(cmd.Context(), buildOptions())
	if err != nil {
		return err
	}
	ui.PrintBuildSummary(report)
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	p := pipeline.New(cfg, pipeline.Dependencies{}, logger.GetLogger())
	if err := p.Clean(); err != nil {
		return err
	}
	ui.PrintSuccess("Removed " + cfg.Storage.ImageDir)
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, commandFlags(cmd))
	if err != nil {
		return err
	}

	opts, err := fetchOptions(cfg, args)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	progress := ui.NewProgressDisplay(fetchTarget(opts), cfg.Logging.Level == "debug")
	p, err := newPipeline(cfg, progress)
	if err != nil {
		return err
	}

	summary, err := p.All(cmd.Context(), opts, buildOptions())
	progress.Complete()
	if summary != nil {
		ui.PrintFetchSummary(summary.Fetch, cfg.Storage.PostsFile)
		ui.PrintBuildSummary(summary.Build)
		if summary.Cleaned {
			ui.PrintSuccess("Removed " + cfg.Storage.ImageDir)
		}
	}
	return err
}

// commandFlags collects the command-local flags that map onto configuration
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if set("session") {
		flags["session"] = sessionName
	}
	if set("delay") {
		flags["delay"] = fetchDelay
	}
	if set("max-posts") {
		flags["max-posts"] = maxPosts
	}
	if set("author") {
		flags["author"] = bookAuthor
	}
	if set("language") {
		flags["language"] = language
	}
	return flags
}

// fetchOptions resolves tags, the date window and the session name
func fetchOptions(cfg *config.Config, args []string) (scraper.Options, error) {
	opts := scraper.Options{
		Tags:        hashtag.Normalize(append(append([]string{}, args...), tagsFlag)),
		TargetUser:  strings.TrimSpace(targetUser),
		SessionName: cfg.Instagram.DefaultSession,
		MaxPosts:    cfg.Fetch.MaxPosts,
	}
	if len(opts.Tags) == 0 && opts.TargetUser == "" {
		return opts, igerrors.Precondition("specify at least one hashtag or --user")
	}

	var err error
	if opts.Since, err = parseDay(sinceFlag, "--since"); err != nil {
		return opts, err
	}
	if opts.Until, err = parseDay(untilFlag, "--until"); err != nil {
		return opts, err
	}
	if !opts.Since.IsZero() && !opts.Until.IsZero() && opts.Until.Before(opts.Since) {
		return opts, igerrors.Precondition("--until %s is before --since %s", untilFlag, sinceFlag)
	}

	if opts.SessionName == "" {
		name, err := promptSessionName()
		if err != nil {
			return opts, err
		}
		opts.SessionName = name
	}
	return opts, nil
}

func parseDay(value, flag string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, igerrors.Precondition("%s must be a date like 2024-01-31, got %q", flag, value)
	}
	return t, nil
}

// promptSessionName asks for a session name when none was configured
func promptSessionName() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", igerrors.Precondition("no session given: use --session or set instagram.default_session")
	}
	fmt.Print("Session name: ")
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read session name: %w", err)
	}
	name := strings.TrimSpace(input)
	if name == "" {
		return "", igerrors.Precondition("a session name is required")
	}
	return name, nil
}

func fetchTarget(opts scraper.Options) string {
	if opts.TargetUser != "" {
		return "@" + opts.TargetUser
	}
	return "#" + strings.Join(opts.Tags, " #")
}

func buildOptions() archive.Options {
	return archive.Options{
		Title:  bookTitle,
		Author: bookAuthor,
		Output: outputPath,
	}
}

// newPipeline wires the Instagram provider for commands that fetch
func newPipeline(cfg *config.Config, progress scraper.Progress) (*pipeline.Pipeline, error) {
	log := logger.GetLogger()

	sessions, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	provider := instagram.NewProvider(sessions, instagram.Options{
		Timeout:   cfg.Instagram.Timeout,
		UserAgent: cfg.Instagram.UserAgent,
		Limiter:   ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
	}, log)

	return pipeline.New(cfg, pipeline.Dependencies{
		Provider: provider,
		Progress: progress,
		Notifier: ui.NewNotifier(),
	}, log), nil
}
