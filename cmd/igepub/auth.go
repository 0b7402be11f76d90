package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igepub/pkg/auth"
	"igepub/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Instagram sessions",
	Long: `Manage named Instagram sessions.

A session is the sessionid and csrftoken cookies of a browser that is
logged in to Instagram. They are stored under a name of your choice in:
  - the system keychain (when available)
  - an encrypted file with a PBKDF2-derived key
IGEPUB_SESSION_ID and IGEPUB_CSRF_TOKEN answer to any name as a fallback.

Never share your cookies or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session under a name",
	Long: `Store a session under a name. You will be prompted for:
  - the session name (if not provided)
  - sessionid cookie value (hidden)
  - csrftoken cookie value (hidden)
  - user agent (optional, press Enter for the configured default)

To find the cookies:
1. Log in to Instagram in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Copy the sessionid and csrftoken values`,
	Example: `  igepub auth login
  igepub auth login me`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:     "logout <name>",
	Short:   "Remove a stored session",
	Example: `  igepub auth logout me`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		fmt.Print("Session name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read session name: %w", err)
		}
		name = strings.TrimSpace(input)
	}
	if name == "" {
		return fmt.Errorf("a session name is required")
	}

	if existing, _ := manager.Load(name); existing != nil {
		fmt.Printf("Session '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Println("Enter the cookie values (input is hidden):")

	fmt.Print("sessionid: ")
	sessionID, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read sessionid: %w", err)
	}
	fmt.Print("csrftoken: ")
	csrfToken, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read csrftoken: %w", err)
	}

	fmt.Print("User agent (Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	session := &auth.Session{
		Name:      name,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Save(session); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Session saved: %s", name))
	fmt.Printf("\nUse it with:\n  igepub fetch <hashtags> --session %s\n", name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Session removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "use 'igepub auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored sessions")
	for i, s := range sessions {
		masked := s.Masked()
		fmt.Printf("%d. %s\n", i+1, masked.Name)
		fmt.Printf("   sessionid: %s\n", masked.SessionID)
		fmt.Printf("   csrftoken: %s\n", masked.CSRFToken)
		if masked.UserAgent != "" {
			fmt.Printf("   user agent: %s\n", masked.UserAgent)
		}
		if !masked.UpdatedAt.IsZero() {
			fmt.Printf("   updated: %s\n", masked.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
