package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"phototriage/pkg/session"
	"phototriage/pkg/ui"
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage bridge session tokens",
	Long: `Manage stored browser-bridge session tokens.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (PHOTOTRIAGE_BRIDGE_TOKEN)

Never share your tokens or config files!`,
}

// sessionLoginCmd stores a bridge session token
var sessionLoginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a bridge session token securely",
	Long: `Store a browser-bridge session token securely.

You will be prompted for:
  - Profile name (if not provided)
  - Session token (hidden as you type)
  - Device id (optional, press Enter to skip)

The bridge agent prints its session token on startup; copy it here.`,
	Example: `  # Interactive login
  phototriage session login

  # Login with profile name
  phototriage session login personal`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSessionLogin,
}

// sessionLogoutCmd removes a stored token
var sessionLogoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored session token",
	Args:  cobra.MaximumNArgs(1),
	Run:   runSessionLogout,
}

// sessionListCmd lists stored sessions
var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List all stored bridge sessions with sanitized token information.`,
	Run:   runSessionList,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLoginCmd)
	sessionCmd.AddCommand(sessionLogoutCmd)
	sessionCmd.AddCommand(sessionListCmd)
}

func runSessionLogin(cmd *cobra.Command, args []string) {
	manager, err := session.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session store", err.Error())
		os.Exit(exitFailure)
	}

	var profile string
	if len(args) > 0 {
		profile = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if profile == "" {
		fmt.Print("Profile name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read profile name", err.Error())
			os.Exit(exitFailure)
		}
		profile = strings.TrimSpace(input)
	}

	if profile == "" {
		ui.PrintError("Profile name is required", "")
		os.Exit(exitFailure)
	}

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("Profile '%s' already exists. Update token? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Session token (hidden): ")
	token, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read token", err.Error())
		os.Exit(exitFailure)
	}
	if token == "" {
		ui.PrintError("Session token is required", "")
		os.Exit(exitFailure)
	}

	fmt.Print("Device id (optional): ")
	deviceID, _ := reader.ReadString('\n')
	deviceID = strings.TrimSpace(deviceID)

	s := &session.Session{
		Profile:     profile,
		BridgeToken: token,
		DeviceID:    deviceID,
	}

	if err := manager.Save(s); err != nil {
		ui.PrintError("Failed to store session", err.Error())
		os.Exit(exitFailure)
	}

	ui.PrintSuccess("Session stored: " + profile)
	fmt.Println("\nStart a scan with:")
	fmt.Println("  phototriage scan")
}

func runSessionLogout(cmd *cobra.Command, args []string) {
	manager, err := session.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session store", err.Error())
		os.Exit(exitFailure)
	}

	if len(args) == 0 {
		sessions, err := manager.List()
		if err != nil || len(sessions) == 0 {
			ui.PrintError("No stored sessions found", "")
			return
		}
		if len(sessions) > 1 {
			fmt.Println("Select session to remove:")
			for i, s := range sessions {
				fmt.Printf("  %d. %s\n", i+1, s.Profile)
			}
			fmt.Println("  0. Cancel")

			reader := bufio.NewReader(os.Stdin)
			fmt.Print("Choice: ")
			input, _ := reader.ReadString('\n')

			var choice int
			fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
			if choice < 1 || choice > len(sessions) {
				return
			}
			args = []string{sessions[choice-1].Profile}
		} else {
			args = []string{sessions[0].Profile}
		}
	}

	profile := args[0]
	if err := manager.Delete(profile); err != nil {
		ui.PrintError("Failed to remove session", err.Error())
		os.Exit(exitFailure)
	}
	ui.PrintSuccess("Session removed: " + profile)
}

func runSessionList(cmd *cobra.Command, args []string) {
	manager, err := session.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session store", err.Error())
		os.Exit(exitFailure)
	}

	sessions, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list sessions", err.Error())
		os.Exit(exitFailure)
	}

	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'phototriage session login' to add one")
		return
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()

	for i, s := range sessions {
		sanitized := session.Sanitize(s)
		fmt.Printf("%d. Profile: %s\n", i+1, sanitized.Profile)
		fmt.Printf("   Token: %s\n", sanitized.BridgeToken)
		if sanitized.DeviceID != "" {
			fmt.Printf("   Device: %s\n", sanitized.DeviceID)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
