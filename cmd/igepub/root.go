package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"igepub/pkg/config"
	"igepub/pkg/logger"
	"igepub/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	quiet         bool
	notifications bool
	imageDir      string
	postsFile     string
	layoutDir     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igepub",
	Short: "Turn Instagram posts into an EPUB photo book",
	Long: `igepub collects photo posts from an Instagram profile or hashtag and
packages them into an EPUB, one chapter per post.

The work happens in two phases that share a JSON posts document:
  fetch   downloads matching posts and writes the posts document
  build   reads the posts document and writes the EPUB
  clean   removes the downloaded images
  all     runs fetch, build and clean in one go

A crawl can be built into several books without fetching again.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
	},
}

// Execute runs the root command and exits non-zero on any reported error.
// An interrupt cancels the command context; only the fetch loop honors it.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./igepub.yaml or ~/.config/igepub/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "enable desktop notifications")
	rootCmd.PersistentFlags().StringVar(&imageDir, "image-dir", "", "working image directory (default temp_images)")
	rootCmd.PersistentFlags().StringVar(&postsFile, "posts-file", "", "posts document path (default posts_data.json)")
	rootCmd.PersistentFlags().StringVar(&layoutDir, "layout-dir", "", "layout directory (default book_layout)")

	rootCmd.SetVersionTemplate(`igepub {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the flags the user set over file, .env and environment
// settings, then installs the global logger
func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("log-level") {
		flags["log-level"] = logLevel
	}
	if set("notifications") {
		flags["notifications"] = notifications
	}
	if set("image-dir") {
		flags["image-dir"] = imageDir
	}
	if set("posts-file") {
		flags["posts-file"] = postsFile
	}
	if set("layout-dir") {
		flags["layout-dir"] = layoutDir
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.GetLogger().WithField("version", version).Debug("igepub starting")
	return cfg, nil
}
