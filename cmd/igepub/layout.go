package main

import (
	"github.com/spf13/cobra"

	"igepub/pkg/layout"
	"igepub/pkg/ui"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Manage the chapter layout",
}

var layoutInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write the default layout files",
	Long: `Write the built-in layout.html and layout.css into the layout directory,
or into dir when given. Existing files are left untouched.

The HTML template must contain {chapter_title}. It may also use
{css_content}, {image_filename}, {caption_html} and {post_url}.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLayoutInit,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.AddCommand(layoutInitCmd)
}

func runLayoutInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	dir := cfg.Layout.Dir
	if len(args) > 0 {
		dir = args[0]
	}

	written, err := layout.WriteDefaults(dir, cfg.Layout.HTMLFile, cfg.Layout.CSSFile)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		ui.PrintInfo("Layout already present", dir)
		return nil
	}
	for _, path := range written {
		ui.PrintSuccess("Wrote " + path)
	}
	return nil
}
