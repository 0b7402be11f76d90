package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igepub/pkg/config"
	"igepub/pkg/layout"
	"igepub/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igepub configuration.

Configuration is merged from, highest priority first:
  - command line flags
  - IGEPUB_* environment variables (also read from .env)
  - the configuration file
  - built-in defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration as YAML. The file is igepub.yaml in the
current directory unless --config names another path. An existing file is
never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the layout it points at",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "igepub.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store a session with 'igepub auth login'")
	fmt.Println("2. Create a layout with 'igepub layout init'")
	fmt.Println("3. Run 'igepub all <hashtags> --session <name>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	htmlPath, cssPath := cfg.LayoutPaths()
	tmpl, err := layout.Load(htmlPath, cssPath)
	if err != nil {
		ui.PrintWarning("Layout is not usable yet", err)
		fmt.Println("Run 'igepub layout init' to write the default layout.")
	} else if len(tmpl.Unknown) > 0 {
		ui.PrintWarning("Layout references undeclared fields", tmpl.Unknown)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Posts document", cfg.Storage.PostsFile)
	ui.PrintInfo("Image directory", cfg.Storage.ImageDir)
	ui.PrintInfo("Layout", htmlPath+", "+cssPath)
	ui.PrintInfo("Output", cfg.Archive.Output)
	ui.PrintInfo("Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	return nil
}
